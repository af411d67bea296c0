package slot

import (
	"fmt"
	"github.com/ValentinKolb/rKV/cmd/util"
	libutil "github.com/ValentinKolb/rKV/lib/util"
	"github.com/ValentinKolb/rKV/rpc/cluster"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"strings"
	"time"
)

var (
	strategy = cluster.NewRedisStrategy()

	distKeys   int
	distShards int
	distSeed   uint64

	// SlotCommands groups offline helpers around cluster hash slots. None of them connects to a server.
	SlotCommands = &cobra.Command{
		Use:   "slot",
		Short: "Inspect hash slots and key extraction",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			return util.InitLogging()
		},
	}

	keyCmd = &cobra.Command{
		Use:   "key [keys...]",
		Short: "Prints the hash slot of each key",
		Args:  cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			for _, key := range args {
				fmt.Printf("key=%s, tag=%s, slot=%d\n", key, cluster.HashTag([]byte(key)), cluster.SlotByKey([]byte(key)))
			}
		},
	}

	cmdCmd = &cobra.Command{
		Use:   "cmd [command line]",
		Short: "Prints the keys and the slot a command is routed to",
		Long:  "Prints the keys and the slot a command is routed to. The arguments are joined and split like a redis-cli line, so quoting works.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCmd,
	}

	commandsCmd = &cobra.Command{
		Use:   "commands",
		Short: "Lists the commands with a known key policy",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			for _, id := range strategy.SupportedCommands() {
				policy, _ := strategy.GetCommandPolicy(id)
				fmt.Printf("%-22s%s\n", id, policy)
			}
		},
	}

	distCmd = &cobra.Command{
		Use:   "dist",
		Short: "Reports how random keys spread over the shards of an evenly split cluster",
		Args:  cobra.NoArgs,
		RunE:  runDist,
	}
)

func init() {
	SlotCommands.AddCommand(keyCmd)
	SlotCommands.AddCommand(cmdCmd)
	SlotCommands.AddCommand(commandsCmd)
	SlotCommands.AddCommand(distCmd)

	distCmd.Flags().IntVar(&distKeys, "keys", 100000, util.WrapString("Number of random keys to hash"))
	distCmd.Flags().IntVar(&distShards, "shards", 3, util.WrapString("Number of shards the slots are split into"))
	distCmd.Flags().Uint64Var(&distSeed, "seed", 0, util.WrapString("Seed of the key generator (0 uses the current time)"))
}

func runCmd(_ *cobra.Command, args []string) error {
	cmd, err := common.ParseCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}

	policy, known := strategy.GetCommandPolicy(cmd.ID())
	if !known {
		fmt.Printf("command=%s, policy=unknown\n", strings.ToUpper(cmd.ID()))
		return nil
	}
	keys := strategy.GetKeys(cmd)
	printable := make([]string, len(keys))
	for i, key := range keys {
		printable[i] = string(key)
	}
	fmt.Printf("command=%s, policy=%s, keys=[%s]\n", strings.ToUpper(cmd.ID()), policy, strings.Join(printable, " "))

	slot, err := strategy.GetSlotOrError(cmd)
	if err != nil {
		fmt.Printf("slot=none (%v)\n", err)
		return nil
	}
	fmt.Printf("slot=%d\n", slot)
	return nil
}

func runDist(_ *cobra.Command, _ []string) error {
	if distKeys < 1 || distShards < 1 {
		return fmt.Errorf("keys and shards must be positive")
	}
	seed := distSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rnd := rand.New(rand.NewSource(seed))

	slots := make([]int, distKeys)
	key := make([]byte, 16)
	for i := range slots {
		_, _ = rnd.Read(key)
		slots[i] = cluster.SlotByKey(key)
	}

	report := struct {
		Keys   int                       `json:"keys"`
		Shards int                       `json:"shards"`
		Seed   uint64                    `json:"seed"`
		Sizes  []float64                 `json:"sizes"`
		Stats  libutil.DistributionStats `json:"stats"`
	}{
		Keys:   distKeys,
		Shards: distShards,
		Seed:   seed,
		Sizes:  libutil.ShardSizes(slots, cluster.SlotCount, distShards),
	}
	report.Stats = libutil.NewDistributionStats(report.Sizes)

	out, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
