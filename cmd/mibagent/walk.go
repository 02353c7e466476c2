package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/config"
	"github.com/HerbHall/mibagent/internal/counterstore"
	"github.com/HerbHall/mibagent/internal/event"
	"github.com/HerbHall/mibagent/internal/registry"
	"github.com/HerbHall/mibagent/internal/server"
	"github.com/HerbHall/mibagent/pkg/oid"
)

// defaultWalkRoot is the Cisco enterprise subtree.
const defaultWalkRoot = "1.3.6.1.4.1.9"

func runWalk(args []string) {
	fs := flag.NewFlagSet("walk", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	timeout := fs.Duration("timeout", 30*time.Second, "refresh timeout")
	_ = fs.Parse(args)

	root := defaultWalkRoot
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	rootOID, err := oid.Parse(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid oid: %v\n", err)
		os.Exit(2)
	}

	v, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	storeCfg, err := storeConfig(v)
	if err != nil {
		logger.Fatal("invalid store configuration", zap.Error(err))
	}
	store, err := counterstore.Open(ctx, storeCfg)
	if err != nil {
		logger.Fatal("failed to open counter store", zap.Error(err))
	}
	defer store.Close()

	reg, _, err := newRegistry(v, logger)
	if err != nil {
		logger.Fatal("failed to register tables", zap.Error(err))
	}
	if err := initRegistry(ctx, reg, v, logger, event.NewBus(logger.Named("event")), store); err != nil {
		logger.Fatal("failed to initialize tables", zap.Error(err))
	}

	if err := walk(ctx, reg, rootOID, os.Stdout); err != nil {
		logger.Error("refresh failed; listing may be incomplete", zap.Error(err))
	}
}

// walk refreshes every table once and prints the subtree under root.
func walk(ctx context.Context, reg *registry.Registry, root oid.OID, w io.Writer) error {
	err := reg.RefreshAll(ctx)
	reg.Walk(ctx, root, 0, func(pdu gosnmp.SnmpPDU) bool {
		fmt.Fprintln(w, formatVarBind(pdu))
		return true
	})
	return err
}

// formatVarBind renders a PDU the way net-snmp's snmpwalk prints it with
// numeric OIDs.
func formatVarBind(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.Integer:
		return fmt.Sprintf("%s = INTEGER: %v", pdu.Name, pdu.Value)
	case gosnmp.Counter64:
		return fmt.Sprintf("%s = Counter64: %v", pdu.Name, pdu.Value)
	case gosnmp.NoSuchObject:
		return fmt.Sprintf("%s = No Such Object available on this agent at this OID", pdu.Name)
	case gosnmp.NoSuchInstance:
		return fmt.Sprintf("%s = No Such Instance currently exists at this OID", pdu.Name)
	case gosnmp.EndOfMibView:
		return fmt.Sprintf("%s = No more variables left in this MIB View", pdu.Name)
	default:
		return fmt.Sprintf("%s = %s: %v", pdu.Name, pdu.Type, pdu.Value)
	}
}
