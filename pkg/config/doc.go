// Package config loads registry.yaml for the registry server and the
// operator CLI. The file is looked up in $ICE_CONFIG_PATH, the working
// directory, $HOME/.ice and /etc/ice, in that order. ICE_REGISTRY_HOST
// and ICE_REGISTRY_PORT override the client section. Command-line flags
// override both and are applied by the commands themselves.
package config
