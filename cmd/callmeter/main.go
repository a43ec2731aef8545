// Callmeter records the latency of outbound HTTP calls as labeled timing
// metrics while capping the number of distinct URI label values.
//
// It runs scheduled synthetic probes through an instrumented client and
// exposes the resulting metrics, guard state and health on an operator
// HTTP server.
//
// Usage:
//
//	# Start the probe scheduler and operator server
//	callmeter run --config callmeter.yaml
//
//	# Probe every target once and print the recorded timings
//	callmeter probe --output json
//
//	# Check a configuration file
//	callmeter validate --config callmeter.yaml --print
//
//	# Show version information
//	callmeter version
package main

func main() {
	Execute()
}
