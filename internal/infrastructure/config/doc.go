// Package config loads and validates the iotbridge configuration.
//
// Configuration is read from a YAML file, merged over built-in defaults,
// and selectively overridden by IOTBRIDGE_* environment variables (used
// for secrets and deployment-specific endpoints). Validation collects
// every problem before reporting, so a broken config surfaces all its
// errors in one run.
package config
