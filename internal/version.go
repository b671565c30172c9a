package internal

// Version is the gateway release version.
var Version = "0.3.0"
