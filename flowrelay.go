// Package flowrelay relays caller requests to a hosted flow-execution
// service and bridges its streamed results back to the caller
package flowrelay

const Name = "flowrelay"

// Version is overridden at link time
var Version = "dev"
