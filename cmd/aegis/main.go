// Aegis is a concurrent content-safety analysis engine.
//
// It screens text with a registry of analysis models, caches results by
// content fingerprint, and reports per-category safety scores and flags.
//
// Usage:
//
//	# Screen a single text
//	aegis analyze "text to screen"
//
//	# Screen stdin with a context hint and JSON output
//	echo "..." | aegis analyze - --context "medical consultation" --format json
//
//	# Screen a file with one text per line
//	aegis batch inputs.txt --parallel
//
//	# Screen files as they are written to a directory and serve metrics
//	aegis watch ./inbox --metrics-addr :9090
//
//	# Inspect and validate detector rules
//	aegis rules list
//	aegis rules validate packs/spanish.yaml
package main

func main() {
	Execute()
}
