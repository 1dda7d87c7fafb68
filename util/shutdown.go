package util

import (
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ShutdownChannelDistributor - For letting multiple listeners receive the internal shutdown signal.
type ShutdownChannelDistributor struct {
	mutex          sync.Mutex
	hasShutdown    bool
	outputChannels []chan<- bool
}

// NewShutdownChannelDistributor - Create a distributor which shuts down when the signal channel fires.
// A nil signal channel means only explicit calls to Shutdown trigger it.
func NewShutdownChannelDistributor(signalChannel <-chan os.Signal) *ShutdownChannelDistributor {
	shutdown := &ShutdownChannelDistributor{}
	if signalChannel != nil {
		go func() {
			sig := <-signalChannel
			log.Infof("Received signal: %v", sig)
			shutdown.Shutdown()
		}()
	}
	return shutdown
}

// AddListener - Add a channel to duplicate input to. The channel should be buffered.
// Return false if the shutdown signal has already been sent.
func (shutdown *ShutdownChannelDistributor) AddListener(output chan<- bool) bool {
	shutdown.mutex.Lock()
	defer shutdown.mutex.Unlock()
	if shutdown.hasShutdown {
		return false
	}
	shutdown.outputChannels = append(shutdown.outputChannels, output)
	return true
}

// Shutdown - Send shutdown signal to all listeners. Only the first call has any effect.
func (shutdown *ShutdownChannelDistributor) Shutdown() {
	shutdown.mutex.Lock()
	defer shutdown.mutex.Unlock()
	if shutdown.hasShutdown {
		return
	}
	shutdown.hasShutdown = true
	log.Infof("Sending shutdown signal to %v listeners", len(shutdown.outputChannels))
	for _, output := range shutdown.outputChannels {
		select {
		case output <- true:
		default:
		}
	}
}

// HasShutdown - Whether the shutdown signal has been sent.
func (shutdown *ShutdownChannelDistributor) HasShutdown() bool {
	shutdown.mutex.Lock()
	defer shutdown.mutex.Unlock()
	return shutdown.hasShutdown
}
