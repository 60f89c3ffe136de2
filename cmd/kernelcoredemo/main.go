// Command kernelcoredemo brings up the kernel core's concurrency,
// interrupt and wait subsystems against the hosted [arch.Sim]
// architecture and drives a short end-to-end scenario: start the
// interrupt fabric's worker, boot the timer, bind an event, wait on it, and
// multiplex a timeout alongside a second interrupt source with
// wait_on_list.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/kernelcore/arch"
	"github.com/joeycumines/kernelcore/internal/democache"
	"github.com/joeycumines/kernelcore/kirq"
	"github.com/joeycumines/kernelcore/klog"
	"github.com/joeycumines/kernelcore/ksync"
	"github.com/joeycumines/kernelcore/ktimer"
	"github.com/joeycumines/kernelcore/kwait"
)

const (
	gsiTimer = 0
	gsiDisk  = 1
	gsiNIC   = 2
)

func main() {
	logger := klog.Default()
	logger.Info().Log(`kernelcoredemo booting`)

	sim := arch.NewSim()
	fabric := kirq.NewFabric(sim, kirq.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fabric.Worker(ctx)

	timerMMIO := arch.NewSimMMIO(64)
	const femtosecondsPerMs = 1_000_000_000_000
	timerMMIO.WriteWord(0, femtosecondsPerMs<<32)
	regs := ktimer.NewRegisters(timerMMIO)

	timer, err := ktimer.Init(regs, sim, gsiTimer, fabric.TimerTrigger)
	if err != nil {
		logger.Err().Err(err).Log(`timer init failed`)
		os.Exit(1)
	}
	defer timer.Close()

	driveSimClock(sim, timerMMIO)

	timer.StartPeriodic(10)
	logger.Info().Int64(`period_ms`, 10).Log(`timer armed`)

	diskHandle, err := kirq.NewEventHandle(fabric, gsiDisk)
	if err != nil {
		logger.Err().Err(err).Log(`bind disk irq failed`)
		os.Exit(1)
	}
	defer diskHandle.Close()

	cache := democache.NewMFTCache(func(index uint32) ([]byte, error) {
		return []byte(fmt.Sprintf("mft-record-%d", index)), nil
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		sim.Fire(gsiDisk)
	}()

	if diskHandle.Wait(time.Second) {
		logger.Info().Log(`disk event observed`)
		entry, err := cache.Get(0)
		if err == nil {
			logger.Info().Str(`entry`, string(*entry.Get())).Log(`loaded mft entry`)
			entry.Release()
		}
	}

	nicFlag := kwait.NewSingleFlag()
	diskFlag := kwait.NewSingleFlag()
	nicBinding, err := fabric.Bind(gsiNIC, func(uint32) { nicFlag.Set() })
	if err != nil {
		logger.Err().Err(err).Log(`bind nic irq failed`)
		os.Exit(1)
	}
	defer nicBinding.Close()

	sleepObj := ksync.NewSleepObject()
	go func() {
		time.Sleep(30 * time.Millisecond)
		sim.Fire(gsiNIC)
	}()

	advanced, timedOut := kwait.WaitOnList(sleepObj, []kwait.Waiter{
		kwait.AsWaiter(nicFlag),
		kwait.AsWaiter(diskFlag),
	}, 500*time.Millisecond)

	switch {
	case timedOut:
		logger.Warning().Log(`wait_on_list timed out`)
	default:
		logger.Info().Interface(`advanced`, advanced).Log(`wait_on_list woke up`)
	}

	logger.Info().Uint64(`uptime_ms`, ktimer.GetTimestamp()).Log(`shutting down`)
}

// driveSimClock advances the simulated timer's main counter in the
// background, standing in for a real HPET's free-running hardware
// counter - nothing in arch.Sim does this on its own.
func driveSimClock(sim *arch.Sim, mmio *arch.SimMMIO) {
	go func() {
		var ticks uint64
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			ticks++
			mmio.WriteWord(0xF, ticks)
			if ticks%10 == 0 {
				sim.Fire(gsiTimer)
			}
		}
	}()
}
