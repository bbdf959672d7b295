// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Command karabo-loggermanager hosts a LoggerManager against a
// configured broker and logger server pool, reassigning newly
// discovered devices across the pool and running the periodic
// topology sanity check.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/broker"
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/loggermanager"
	"github.com/European-XFEL/Karabo-sub015/internal/xms"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/google/gops/agent"
)

// ProgramConfig is the JSON configuration file format for this binary.
type ProgramConfig struct {
	ManagerID         string          `json:"managerId"`
	Servers           []string        `json:"servers"`
	MapFilePath       string          `json:"mapFilePath"`
	BlocklistFilePath string          `json:"blocklistFilePath"`
	Broker            json.RawMessage `json:"broker"`
}

var programConfig = ProgramConfig{
	MapFilePath:       "./var/loggermap.json",
	BlocklistFilePath: "./var/blocklist.json",
}

func main() {
	var flagConfigFile, flagServers, flagLogLevel string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default options by those specified in `config.json`")
	flag.StringVar(&flagServers, "servers", "", "Comma-separated logger server instance ids (overrides config.json)")
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

	if flagServers != "" {
		programConfig.Servers = strings.Split(flagServers, ",")
	}
	if programConfig.ManagerID == "" {
		klog.Fatal("config.json must set \"managerId\"")
	}
	if len(programConfig.Servers) == 0 {
		klog.Fatal("no logger servers configured (use -servers or config.json's \"servers\")")
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

	// mgr is filled in once loggermanager.New runs; the tracking handler
	// closure only fires after ss.Start, by which point it is set.
	var mgr *loggermanager.Manager
	ss := xms.New(driver, xms.Options{
		InstanceID:        programConfig.ManagerID,
		HeartbeatInterval: 10 * time.Second,
		TrackInstances:    true,
		TrackingHandler: func(event, instanceID string, info *kdata.Container) {
			instanceType := typeFromInfo(info)
			classID := classIDFromInfo(info)
			switch event {
			case "instanceNew":
				switch instanceType {
				case "server":
					mgr.OnServerDiscovered(instanceID)
				case "device":
					mgr.OnDeviceDiscovered(instanceID, classID)
					if classID == loggermanager.LoggerClassID {
						mgr.OnLoggerDiscovered(instanceID)
					}
				}
			case "instanceGone":
				switch instanceType {
				case "server":
					mgr.OnServerGone(instanceID)
				case "device":
					mgr.OnDeviceGone(instanceID)
					if classID == loggermanager.LoggerClassID {
						mgr.OnLoggerGone(instanceID)
					}
				}
			}
		},
	})

	mgr = loggermanager.New(ss, loggermanager.Options{
		ManagerID:         programConfig.ManagerID,
		Servers:           programConfig.Servers,
		MapFilePath:       programConfig.MapFilePath,
		BlocklistFilePath: programConfig.BlocklistFilePath,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ss.Start(ctx); err != nil {
		klog.Fatal("starting instance ", programConfig.ManagerID, ": ", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		klog.Fatal("starting logger manager: ", err)
	}
	klog.Infof("%s: running with %d logger servers", programConfig.ManagerID, len(programConfig.Servers))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	klog.Infof("%s: shutting down", programConfig.ManagerID)
	mgr.Stop()
	ss.Stop()
	_ = driver.Close()
}

// classIDFromInfo reads the conventional "classId" key a device's
// instanceInfo carries, if present.
func classIDFromInfo(info *kdata.Container) string {
	if info == nil {
		return ""
	}
	v, ok := info.Get("classId")
	if !ok {
		return ""
	}
	classID, _ := v.AsString()
	return classID
}

// typeFromInfo reads the "type" key every instance's instanceInfo
// carries ("server" or "device"), distinguishing a device-server
// process from the devices it hosts.
func typeFromInfo(info *kdata.Container) string {
	if info == nil {
		return ""
	}
	v, ok := info.Get("type")
	if !ok {
		return ""
	}
	instanceType, _ := v.AsString()
	return instanceType
}
