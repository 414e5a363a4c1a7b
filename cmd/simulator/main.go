// Command simulator feeds synthetic room readings into a Thermonest server,
// over HTTP by default or through the MQTT broker when MQTT_BROKER is set.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/sdk"
	"github.com/nicktill/thermonest/pkg/sdk/transport"
)

const (
	defaultRooms    = "living-room,bedroom,attic"
	defaultInterval = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	rooms := strings.Split(getenv("SIM_ROOMS", defaultRooms), ",")
	interval := defaultInterval
	if v := os.Getenv("SIM_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("Invalid SIM_INTERVAL %q", v)
		}
		interval = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shared transport.Transport
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		mqtt, err := transport.DialMQTT(ctx, transport.MQTTOptions{
			Broker:   broker,
			Topic:    getenv("MQTT_TOPIC", config.DefaultMQTTTopic),
			ClientID: "thermonest-simulator",
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		})
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		defer mqtt.Close()
		shared = mqtt
		log.Printf("Publishing through MQTT broker %s", broker)
	} else {
		log.Printf("Posting to %s", getenv("THERMONEST_ENDPOINT", sdk.DefaultEndpoint))
	}

	clients := make([]*sdk.Client, 0, len(rooms))
	models := make([]*room, 0, len(rooms))
	for i, name := range rooms {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		client, err := sdk.New(sdk.ClientConfig{
			Source:     name,
			Token:      os.Getenv("THERMONEST_TOKEN"),
			Endpoint:   os.Getenv("THERMONEST_ENDPOINT"),
			FlushEvery: interval,
			Transport:  shared,
		})
		if err != nil {
			log.Fatalf("Failed to create client for %s: %v", name, err)
		}
		if err := client.Start(ctx); err != nil {
			log.Fatalf("Failed to start client for %s: %v", name, err)
		}
		clients = append(clients, client)
		models = append(models, newRoom(name, time.Now().UnixNano()+int64(i)))
	}
	log.Printf("Simulating %d rooms, one reading each every %v", len(clients), interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			log.Println("Stopping simulator...")
			for i, client := range clients {
				if err := client.Stop(); err != nil {
					log.Printf("Final flush for %s failed: %v", models[i].name, err)
				}
			}
			return
		case now := <-ticker.C:
			for i, client := range clients {
				temperature, humidity := models[i].sample(now)
				if err := client.Record(temperature, humidity); err != nil {
					log.Printf("Skipped reading for %s: %v", models[i].name, err)
					continue
				}
				if dropped := client.Dropped(); dropped > 0 {
					log.Printf("%s: %d readings dropped so far", models[i].name, dropped)
				}
			}
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
