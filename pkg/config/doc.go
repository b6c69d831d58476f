// Package config loads plugdeploy's layered configuration.
//
// Layers, later ones winning:
//
//  1. embedded defaults (embedded/defaults.toml)
//  2. user config ($XDG_CONFIG_HOME/plugdeploy/config.toml) or an explicit file
//  3. the target's .plugdeploy.toml
//  4. PLUGDEPLOY_<SECTION>_<KEY> environment variables
//
// Values are decoded into Config with koanf struct tags.
package config
