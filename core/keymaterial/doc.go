// Package keymaterial provides the cryptographic leaf utilities used by the
// certificate lifecycle: key-pair generation, PEM parsing, CSR construction,
// and self-signed development certificates.
//
// All functions are pure: no shared state, no side effects beyond
// cryptographic computation.
//
// # Basic Usage
//
//	key, err := keymaterial.Generate(certcrypto.EC256)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	csr, err := keymaterial.CreateCSR(key, []string{"example.com", "www.example.com"})
//	if err != nil {
//		log.Fatal(err)
//	}
package keymaterial
