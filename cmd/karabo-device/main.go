// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Command karabo-device hosts a single SignalSlotable instance on the
// broker, for standalone device-server-style processes that only need
// the runtime's request/reply and discovery plumbing without a full
// device-server framework around it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/broker"
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/xms"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/google/gops/agent"
)

// ProgramConfig is the JSON configuration file format, mirroring the
// broker's own Config shape plus the handful of process-level options
// this binary owns itself.
type ProgramConfig struct {
	InstanceID        string          `json:"instanceId"`
	HeartbeatSeconds  int             `json:"heartbeatSeconds"`
	DefaultTimeoutMs  int             `json:"defaultTimeoutMs"`
	Broker            json.RawMessage `json:"broker"`
	TrackInstances    bool            `json:"trackInstances"`
}

var programConfig = ProgramConfig{
	HeartbeatSeconds: 10,
	DefaultTimeoutMs: 5000,
}

func main() {
	var flagConfigFile, flagInstanceID, flagLogLevel string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default options by those specified in `config.json`")
	flag.StringVar(&flagInstanceID, "instance-id", "", "Instance id this process registers under (overrides config.json)")
	flag.StringVar(&flagLogLevel, "log-level", "info", "One of debug, info, warn, err")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	klog.SetLevel(flagLogLevel)
	klog.SetLogDateTime(true)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			klog.Fatal("gops/agent.Listen failed: ", err)
		}
	}

	if f, err := os.Open(flagConfigFile); err == nil {
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&programConfig); err != nil {
			klog.Fatal("decoding ", flagConfigFile, ": ", err)
		}
		f.Close()
	} else if !os.IsNotExist(err) || flagConfigFile != "./config.json" {
		klog.Fatal("opening ", flagConfigFile, ": ", err)
	}

	if flagInstanceID != "" {
		programConfig.InstanceID = flagInstanceID
	}
	if programConfig.InstanceID == "" {
		klog.Fatal("no instance id given (use -instance-id or config.json's \"instanceId\")")
	}

	cfg, err := broker.Init(programConfig.Broker)
	if err != nil {
		klog.Fatal("broker config: ", err)
	}
	if cfg.Address == "" {
		klog.Fatal("broker config must set \"address\"")
	}
	driver, err := broker.Dial(cfg)
	if err != nil {
		klog.Fatal("connecting to broker: ", err)
	}
	driver.OnError(func(consumerID, kind, message string) {
		klog.Warnf("broker error (%s/%s): %s", consumerID, kind, message)
	})

	info := kdata.NewContainer()
	info.MustSet("type", kdata.NewString("device"))

	ss := xms.New(driver, xms.Options{
		InstanceID:        programConfig.InstanceID,
		HeartbeatInterval: time.Duration(programConfig.HeartbeatSeconds) * time.Second,
		DefaultTimeout:    time.Duration(programConfig.DefaultTimeoutMs) * time.Millisecond,
		InstanceInfo:      info,
		TrackInstances:    programConfig.TrackInstances,
		TrackingHandler: func(event, instanceID string, info *kdata.Container) {
			klog.Infof("%s: %s", instanceID, event)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ss.Start(ctx); err != nil {
		klog.Fatal("starting instance ", programConfig.InstanceID, ": ", err)
	}
	klog.Infof("%s: running, broker %s", programConfig.InstanceID, cfg.Address)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	klog.Infof("%s: shutting down", programConfig.InstanceID)
	ss.Stop()
	_ = driver.Close()
}
