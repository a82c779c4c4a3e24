// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build rp2040 || rp2350

// rtdnode-pico runs the Pt100 sensor node on a Raspberry Pi Pico and
// broadcasts the status message through a LoRa modem on UART0.
//
//	tinygo flash -target pico ./cmd/rtdnode-pico
//
// Wiring: ADS1115 on I2C0 (SDA=GP4, SCL=GP5), bridge power switch on GP17,
// modem on UART0 (TX=GP0, RX=GP1).
package main

import (
	"context"
	"errors"
	"log/slog"
	"machine"
	"os"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/rtdnode/ads1115"
	"github.com/GermanBionicSystems/rtdnode/node"
	"github.com/GermanBionicSystems/rtdnode/tinybus"
	"github.com/GermanBionicSystems/rtdnode/transport"
	"github.com/GermanBionicSystems/rtdnode/transport/uartradio"
	uartx "github.com/jangala-dev/tinygo-uartx"
	"github.com/lmittmann/tint"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	powerPin        = machine.Pin(17)
	baud     uint32 = 115200
	readTick        = 20 * time.Millisecond
)

var errPWM = errors.New("rtdnode-pico: pwm not supported")

// picoPin is a push-pull output pin.
type picoPin struct {
	p machine.Pin
	n int
}

func (p *picoPin) String() string   { return p.Name() }
func (p *picoPin) Halt() error      { return nil }
func (p *picoPin) Name() string     { return "GP" + strconv.Itoa(p.n) }
func (p *picoPin) Number() int      { return p.n }
func (p *picoPin) Function() string { return "Out" }

func (p *picoPin) Out(l gpio.Level) error {
	p.p.Set(bool(l))
	return nil
}

func (p *picoPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errPWM
}

// uartPort reads with a short timeout and returns (0, nil) when the line is
// idle.
type uartPort struct {
	u *uartx.UART
}

func (p *uartPort) Read(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readTick)
	defer cancel()
	n, err := p.u.RecvSomeContext(ctx, b)
	if errors.Is(err, context.DeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (p *uartPort) Write(b []byte) (int, error) {
	return p.u.Write(b)
}

func mainImpl(log *slog.Logger) error {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		return err
	}
	bus, err := tinybus.New(i2c, "I2C0")
	if err != nil {
		return err
	}
	dev, err := ads1115.NewI2C(bus, ads1115.DefaultAddress, &ads1115.DefaultOpts)
	if err != nil {
		return err
	}

	powerPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin := &picoPin{p: powerPin, n: int(powerPin)}
	if err := pin.Out(gpio.Low); err != nil {
		return err
	}

	u := uartx.UART0
	if err := u.Configure(uartx.UARTConfig{BaudRate: baud, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN}); err != nil {
		return err
	}
	modem := uartradio.New(&uartPort{u: u}, &uartradio.DefaultOpts)
	if err := modem.Ping(context.Background()); err != nil {
		log.Warn("modem not answering", "err", err)
	}
	b, err := transport.New(modem, &transport.DefaultPolicy, log)
	if err != nil {
		return err
	}

	runner := node.NewRunner(nil)
	opts := node.DefaultSchedulerOpts
	opts.Sequencer.Logger = log
	sched, err := node.NewScheduler(node.Collaborators{
		Converter:   dev,
		Power:       pin,
		Transmitter: b,
		Events:      runner,
	}, runner, &opts)
	if err != nil {
		return err
	}
	log.Info("running", "bus", bus, "period", opts.Period)
	return runner.Run(context.Background(), sched)
}

func main() {
	// Leave time for the USB console to attach.
	time.Sleep(2 * time.Second)
	log := slog.New(tint.NewHandler(os.Stdout, &tint.Options{NoColor: true}))
	for {
		err := mainImpl(log)
		log.Error("stopped", "err", err)
		time.Sleep(10 * time.Second)
	}
}
