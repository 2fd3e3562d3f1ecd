// Package config loads the labctl bootstrap configuration.
//
// The configuration is a single YAML document with one section per stage.
// String values may reference environment variables as ${VAR}; references
// are expanded before decoding, so secrets can stay out of the file:
//
//	certManager:
//	  email: ops@example.com
//	  route53:
//	    region: eu-central-1
//	    hostedZoneID: Z0123456789
//	    accessKeyID: ${AWS_ACCESS_KEY_ID}
//	    secretAccessKey: ${AWS_SECRET_ACCESS_KEY}
//	harbor:
//	  host: registry.lab.example.com
//	harborProjects:
//	  - name: ci
//	    robot:
//	      name: push
//	    retention:
//	      keepLatest: 10
//
// Defaults are applied after decoding. Validate checks only the sections
// required by the stages that are about to run.
package config
