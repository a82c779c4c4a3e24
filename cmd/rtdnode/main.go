// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// rtdnode runs the Pt100 sensor node on a host: it measures the temperature
// once per period and broadcasts the status message over MQTT or a LoRa
// modem.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"github.com/GermanBionicSystems/rtdnode/config"
	"github.com/GermanBionicSystems/rtdnode/node"
	"github.com/GermanBionicSystems/rtdnode/transport"
	"github.com/GermanBionicSystems/rtdnode/transport/mqttcast"
	"github.com/GermanBionicSystems/rtdnode/transport/uartradio"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// sender is a transport that holds a connection.
type sender interface {
	transport.Sender
	io.Closer
}

func dial(ctx context.Context, cfg *config.Config, log *slog.Logger) (sender, error) {
	switch cfg.Transport.Kind {
	case config.KindMQTT:
		c, err := mqttcast.Dial(ctx, cfg.MQTTOpts())
		if err != nil {
			return nil, err
		}
		log.Info("connected", "broker", cfg.Transport.MQTT.Broker, "client_id", c.ClientID())
		return c, nil
	case config.KindUART:
		m, err := uartradio.Open(cfg.Transport.UART.Port, cfg.UARTOpts())
		if err != nil {
			return nil, err
		}
		if err := m.Ping(ctx); err != nil {
			log.Warn("modem not answering", "port", cfg.Transport.UART.Port, "err", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
}

func mainImpl() error {
	configPath := flag.String("config", "rtdnode.yaml", "configuration file")
	once := flag.Bool("once", false, "run a single cycle and exit")
	verbose := flag.Bool("v", false, "verbose mode")
	ports := flag.Bool("ports", false, "list the serial ports and exit")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	if *verbose {
		level = slog.LevelDebug
	}
	log := newLogger(os.Stderr, level)
	slog.SetDefault(log)

	if *ports {
		names, err := uartradio.Ports()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(cfg.Bus.Name)
	if err != nil {
		return err
	}
	defer bus.Close()
	pin := gpioreg.ByName(cfg.Power.Pin)
	if pin == nil {
		return fmt.Errorf("no pin %q", cfg.Power.Pin)
	}
	defer pin.Out(gpio.Low)
	copts, err := cfg.ConverterOpts()
	if err != nil {
		return err
	}
	dev, err := ads1115.NewI2C(bus, cfg.Bus.Address, copts)
	if err != nil {
		return err
	}
	log.Debug("converter", "dev", dev, "rate", copts.Rate.SamplesPerSecond())

	s, err := dial(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()
	b, err := transport.New(s, cfg.Policy(), log.With("component", "transport"))
	if err != nil {
		return err
	}
	defer b.Wait()

	runner := node.NewRunner(cfg.RunnerOpts(*once))
	sopts, err := cfg.SchedulerOpts(log)
	if err != nil {
		return err
	}
	sched, err := node.NewScheduler(node.Collaborators{
		Converter:   dev,
		Power:       pin,
		Transmitter: b,
		Events:      runner,
	}, runner, sopts)
	if err != nil {
		return err
	}
	log.Info("running", "period", cfg.Cycle.Period, "transport", cfg.Transport.Kind)
	if err := runner.Run(ctx, sched); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "rtdnode: %s.\n", err)
		os.Exit(1)
	}
}
