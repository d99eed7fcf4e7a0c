// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/notify"
	"github.com/atomicdata-dev/atomicd/pkg/populate"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/store/badgerstore"
	"github.com/atomicdata-dev/atomicd/pkg/store/memstore"
)

var (
	setupLog logr.Logger

	serverURL    string
	selfURL      string
	dataDir      string
	agentPrivKey string
	driveName    string
	publicRead   bool
	devMode      bool
)

func init() {
	flag.StringVar(&serverURL, "server-url", "https://localhost", "The public URL this server identifies itself as")
	flag.StringVar(&selfURL, "self-url", "", "The host used to decide whether a subject is local; defaults to server-url's host")
	flag.StringVar(&dataDir, "data-dir", "", "Badger data directory. Empty uses an in-memory store")
	flag.StringVar(&agentPrivKey, "agent-private-key", "", "Base64-encoded Ed25519 seed for the root agent. Empty generates a fresh one")
	flag.StringVar(&driveName, "drive-name", "", "Subdomain name for the bootstrap drive. Empty creates the drive at server-url itself")
	flag.BoolVar(&publicRead, "drive-public-read", true, "Grant the public agent read access to the bootstrap drive")
	flag.BoolVar(&devMode, "dev", false, "Use a human-readable development logger instead of JSON")
	flag.Parse()

	var zapLog *zap.Logger
	var err error
	if devMode {
		zapLog, err = zap.NewDevelopment()
	} else {
		zapLog, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to build logger: %v\n", err)
		os.Exit(1)
	}
	setupLog = zapr.NewLogger(zapLog).WithName("setup")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if selfURL == "" {
		selfURL = serverURL
	}

	backend, err := newBackend()
	if err != nil {
		setupLog.Error(err, "unable to open store backend")
		os.Exit(1)
	}
	defer backend.Close()

	if err := populate.BaseModels(backend); err != nil {
		setupLog.Error(err, "unable to populate base ontology")
		os.Exit(1)
	}

	rootAgent, err := rootAgent()
	if err != nil {
		setupLog.Error(err, "unable to establish root agent")
		os.Exit(1)
	}
	agentResource := rootAgent.ToResource()
	if err := backend.AddResourceOpts(agentResource, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}); err != nil {
		setupLog.Error(err, "unable to write root agent resource")
		os.Exit(1)
	}
	setupLog.Info("root agent ready", "subject", rootAgent.Subject())
	if rootAgent.PrivateKeyB64() != "" {
		setupLog.Info("root agent private key (store this securely, it is not logged again)", "privateKey", rootAgent.PrivateKeyB64())
	}

	drive, err := populate.CreateDrive(backend, driveName, rootAgent.Subject(), publicRead)
	if err != nil && aerrors.KindOf(err) != aerrors.Conflict {
		setupLog.Error(err, "unable to create bootstrap drive")
		os.Exit(1)
	} else if err == nil {
		setupLog.Info("bootstrap drive ready", "subject", drive.Subject())
	}

	fanout, err := notify.NewFanout(backend, notify.SubscriberFunc(logNotification(setupLog)), notify.WithLogger(setupLog.WithName("notify")))
	if err != nil {
		setupLog.Error(err, "unable to build notification fanout")
		os.Exit(1)
	}

	setupLog.Info("atomicd ready", "serverURL", serverURL, "selfURL", selfURL)
	if err := fanout.Run(ctx); err != nil {
		setupLog.Error(err, "notification fanout exited with error")
		os.Exit(1)
	}
}

func newBackend() (store.Store, error) {
	if dataDir == "" {
		return memstore.New(serverURL, selfURL), nil
	}
	return badgerstore.Open(dataDir, serverURL, selfURL)
}

func rootAgent() (*resource.Agent, error) {
	if agentPrivKey != "" {
		return resource.NewAgentFromPrivateKey(serverURL, agentPrivKey)
	}
	return resource.NewAgent(serverURL)
}

func logNotification(log logr.Logger) func(ctx context.Context, batch []store.Notification) error {
	return func(ctx context.Context, batch []store.Notification) error {
		for _, n := range batch {
			log.Info("commit applied", "subject", n.Subject, "commit", n.CommitURL, "new", n.IsNew, "destroyed", n.Destroyed)
		}
		return nil
	}
}
