package kv

import (
	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/spf13/cobra"
	"os"
)

var (
	rkvConfig *common.ClientConfig
	rkvClient client.IClient
	rkvStore  client.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(execCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(setECmd)
	KeyValueCommands.AddCommand(setEIfUnsetCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(exprCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(pipeCmd)
	KeyValueCommands.AddCommand(multiCmd)
	KeyValueCommands.AddCommand(subscribeCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	rkvConfig = config

	// subscribe drives its own connection
	if cmd == subscribeCmd {
		return nil
	}

	rkvClient, err = client.NewClient(*config, nil)
	if err != nil {
		return err
	}
	rkvStore = client.NewStore(rkvClient)
	return nil
}

// closeKVClient disconnects the client and prints the metrics if requested
func closeKVClient(_ *cobra.Command, _ []string) error {
	defer util.WriteMetrics(os.Stdout)
	if rkvClient == nil {
		return nil
	}
	return rkvClient.Close()
}
