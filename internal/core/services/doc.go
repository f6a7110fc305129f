// Package services implements the driving port interfaces.
// Services compose the dataflow packages with driven adapters
// (index connectors, similarity scorers) behind the driving ports.
package services
