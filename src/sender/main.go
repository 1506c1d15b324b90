package main

import (
	"context"
	"fmt"
	"os"

	"stem-unmixer/src/application"
	"stem-unmixer/src/application/config"
	"stem-unmixer/src/application/jobs/extract"
	"stem-unmixer/src/application/publish"
	"stem-unmixer/src/lib/env"

	"github.com/streadway/amqp"
)

// sender queues a single extraction of the file in os.Args[1] for the
// stems that follow it. Handy for poking a development worker.
func main() {
	if len(os.Args) < 3 {
		panic("Usage: sender <input path> <stem>...")
	}

	if err := env.LoadDotEnv(".env"); err != nil {
		panic(err)
	}

	cfg, err := config.Load(os.Getenv("UNMIX_CONFIG"))
	if err != nil {
		panic(err)
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	publisher, err := publish.NewRabbitMQPublisher(conn, cfg.RabbitMQ.Queue)
	if err != nil {
		panic(err)
	}
	defer publisher.Close()

	params := extract.JobParams{
		InputPath: os.Args[1],
		Stems:     os.Args[2:],
	}

	runID, err := application.Enqueue(context.Background(), cfg, application.NewRunStore(cfg), publisher, params)
	if err != nil {
		panic(err)
	}

	fmt.Println(runID)
}
