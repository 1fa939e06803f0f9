// Package config provides configuration parsing for flight projects.
//
// Configuration is stored in flight.json at the project root. Every value can
// be overridden from the environment with the FLIGHT_ prefix, nested keys
// joined by underscores (FLIGHT_SERVER_PORT, FLIGHT_ROUTES_BASENAME).
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 3000,
//	    "websocket": true,
//	    "metrics": true
//	  },
//	  "routes": {
//	    "manifest": "routes.yaml",
//	    "basename": "/",
//	    "watch": true
//	  },
//	  "render": {
//	    "workers": 4,
//	    "modules": "dev"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Address:", cfg.Address())
package config
