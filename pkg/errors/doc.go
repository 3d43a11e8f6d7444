// Package errors provides structured error types for better observability
// and programmatic error handling across the application.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeTimeout,
//	    "failed to collect SMART attributes",
//	    ctx.Err(),
//	    map[string]interface{}{
//	        "command": "smartctl",
//	        "device":  "/dev/sda",
//	    },
//	)
package errors
