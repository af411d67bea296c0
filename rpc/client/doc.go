// Package client is the entry point for applications. It combines the node connections of the
// transport package and the slot routing of the cluster package behind one IClient.
//
// The package provides:
//   - NewClient: a client for a single node or, with ClientConfig.Cluster, for a cluster
//   - key prefixing through the key positions known to the strategy
//   - optional conversion of error replies into *common.ServerError
//   - NewStore and NewLockMgr: small typed views (get/set, locks) on top of a client
//
// Usage Example:
//
//	config := common.ClientConfig{
//		Parameters:        common.DefaultParameters(),
//		Prefix:            "app:",
//		RaiseServerErrors: true,
//	}
//	c, err := client.NewClient(config, nil)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	reply, err := c.Execute(common.NewCommand("GET", "user:1"))
//
//	store := client.NewStore(c)
//	_ = store.SetE("session", []byte("token"), time.Minute)
//
// Thread Safety:
//
//	Clients can be used from multiple goroutines. Commands for the same node are serialized.
package client
