// Package config loads the server and lingoctl settings with viper: built-in
// defaults, then an optional config.yaml in the working directory, then
// LINGO_ environment variables (LINGO_QUEUE_BACKEND for queue.backend). The
// result is checked with validator struct tags before use, so backend
// specific settings such as the Redis address or the Gemini key are only
// required when that backend is selected.
package config
