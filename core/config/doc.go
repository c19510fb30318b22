// Package config provides type-safe environment variable loading with caching
// using Go generics-free reflection. Each configuration type is loaded once
// and cached for subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	type ListenerConfig struct {
//		Addr string `env:"LISTENER_ADDR" envDefault:":8443"`
//		Kind string `env:"LISTENER_KIND" envDefault:"tcp"`
//	}
//
//	func main() {
//		var cfg ListenerConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 ListenerConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 ListenerConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently.
package config
