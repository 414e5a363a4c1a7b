/*
Package sdk is the device-side client for Thermonest sensors.

A Client owns one sensor source. Readings are validated locally with the
same limits the server applies, buffered, and shipped in batches of at most
ingest.MaxReadingsPerRequest.

# Quick Start

	client, err := sdk.New(sdk.ClientConfig{
	    Source:   "living-room",
	    Token:    os.Getenv("THERMONEST_TOKEN"),
	    Endpoint: "http://localhost:5000/api/sensors/readings",
	})
	if err != nil {
	    log.Fatal(err)
	}

	client.Start(ctx)
	defer client.Stop()

	client.Record(21.4, 44.0)

# Transports

By default batches are posted to the readings endpoint, which requires a
bearer token. Devices on the broker network can publish instead:

	mqtt, err := transport.DialMQTT(ctx, transport.MQTTOptions{
	    Broker: "localhost:1883",
	    Topic:  "thermonest/+/readings",
	})
	client, err := sdk.New(sdk.ClientConfig{Source: "attic", Transport: mqtt})

Each reading then becomes one QoS 1 message on thermonest/<source>/readings,
which the server's bridge parses as JSON.

# Failure handling

A batch whose send fails is dropped and counted; Dropped reports the total.
Readings outside the accepted ranges are rejected by Record and never
queued.
*/
package sdk
