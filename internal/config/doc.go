// Package config provides configuration parsing for pixelbridge.
//
// The configuration is stored in pixelbridge.yaml. Every key is optional;
// keys left out keep the defaults shown here. Durations are strings.
//
// # Configuration File Structure
//
//	source:
//	  address: 192.168.4.1:81
//	  origin: http://192.168.4.1
//	  path: /
//	  maxPayload: 16384
//	grid:
//	  pixels: 16
//	  columns: 4
//	session:
//	  controlQueueDepth: 32
//	  monitorInterval: 1s
//	  minFramesPerInterval: 1
//	  sampleEvery: 200
//	  readIdleTimeout: 0s
//	  writeTimeout: 10s
//	supervisor:
//	  reconnectBackoff: 5s
//	  dialTimeout: 10s
//	  handshakeTimeout: 10s
//	display:
//	  queueDepth: 1
//	  actuator: log
//	  restartDelay: 2s
//	metrics:
//	  address: :9090
//	log:
//	  level: info
//	  format: text
//
// # Usage
//
//	cfg, err := config.LoadFile("pixelbridge.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	sup := supervisor.New(cfg.SupervisorConfig(), nil, queue, sink)
package config
