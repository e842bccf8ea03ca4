// Package config loads localchat configuration.
//
// Configuration comes from a YAML file, then defaults for anything left
// unset, then environment overrides, and is validated as a whole. A .env
// file in the working directory is loaded into the environment first.
//
// Example:
//
//	server:
//	  listen_address: "127.0.0.1:3000"
//	backends:
//	  default: vllm
//	  vllm:
//	    base_url: "http://127.0.0.1:8000/v1"
//	  ollama:
//	    base_url: "http://127.0.0.1:11434/v1"
//	    context_length: 4096
//	generation:
//	  model: "local-model"
//	  temperature: 0.7
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: "data/localchat.db"
//
// Environment variables use the LOCALCHAT_ prefix (LOCALCHAT_BACKEND,
// LOCALCHAT_VLLM_BASE_URL, ...). The unprefixed names BACKEND,
// OPENAI_BASE_URL, OPENAI_API_KEY, MODEL_ID, TEMPERATURE, TOP_P, MAX_TOKENS,
// THREADS and CONTEXT_LENGTH are honored too; prefixed names win.
//
// The server reads configuration through the singleton (Initialize,
// GetConfig, ReloadConfig) and reloads it when Watch reports a change.
package config
