package config

// DefaultCfg shows the default configuration of the websubhub server
var DefaultCfg = `
[server]
	address = ""
	port = 8080
	grpc-port = 0       # 0 disables the gRPC health service
	public-url = ""     # defaults to http://localhost:<port>
[log]
	level = "info"      # error, warn, info, debug
	file = "-"          # stderr, or a filename
	formatter = "text"  # text, json
[timeout]
	request = "5s"
[hub]
	default-lease = "240h"
	min-lease = "1h"
	max-lease = "720h"
	max-secret-length = 200
	max-content-bytes = 10485760
	workers = 16
	queue-size = 1024
	max-fanout = 0      # concurrent deliveries per publish, 0 = unbounded
	pending-ttl = "1m"  # how long a verification may still change the outcome
	reap-interval = "1m"
	signature-header = "X-Hub-Signature"
	delivery-log-size = 50
[db]
	driver = "memory"   # memory, sqlite3, postgres
	connect = ""
[auth]
	secret = ""         # empty disables the admin endpoints
`
