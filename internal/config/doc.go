// Package config holds the settings of trustcrawl: the neighbor and scoring
// endpoints, crawl bounds, the chain table, the blocklist and the service
// listener.
//
// Values are layered. NewConfig fills the defaults, a YAML file found by
// FindConfigFile is merged with File.Apply, TRUSTCRAWL_* environment
// variables are applied by ApplyEnv and CLI flags override everything.
package config
