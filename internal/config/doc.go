// Package config loads the vnative.yaml project file.
//
// The file is optional. When it is missing, Default values are used and
// command line flags override individual fields.
//
// # Configuration File Structure
//
//	name: demo
//	server:
//	  address: ":7070"
//	  path: /ws
//	  handshakeTimeout: 5s
//	  heartbeatInterval: 30s
//	  maxSessions: 64
//	devkit:
//	  address: ":7777"
//	  projectHome: .
//	  logStore: build/devkit.db
//	log:
//	  level: info
//	  format: text
//	archive:
//	  enabled: false
//	  bucket: vnative-exceptions
//	  region: us-east-1
//	  prefix: exceptions/
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//
//	fmt.Println("Listening on", cfg.Server.Address)
package config
