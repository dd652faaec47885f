// Parses flags and runs the relinkcheck and imagediff commands.
//
// Both tools accept the same global flags:
//
//	-q, --quiet     Only log errors.
//	-v, --verbose   Log informational messages.
//	-d, --debug     Log debug messages, including raw error causes.
//	-c, --config    Configuration file.
//
// The configuration file is YAML. Without --config it is searched for as
// runtimelink/config.yaml under the XDG config directories. Flags override
// configured values. After the configuration is loaded the global logger is
// replaced with one honoring the configured format and the verbosity flags.
package cli
