// Package config handles notification configuration resolution: explicit
// options take precedence, EMAIL_* environment variables are the fallback,
// built-in defaults apply last. Options can also be loaded from a YAML file.
package config
