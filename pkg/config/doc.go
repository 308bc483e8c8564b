// Package config holds the environment-driven configuration structs shared by
// the registry server and the client tooling. Structs carry cleanenv env tags
// and are loaded with cleanenv.ReadEnv; every field has a development-friendly
// default so the binaries start with no environment at all.
package config
