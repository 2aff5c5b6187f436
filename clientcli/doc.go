// Package clientcli provides a client library for talking to blobkeep servers.
//
// It supports put, get, stat, delete, list and health operations over the
// plain HTTP API, plus profile-based configuration for managing connections
// to multiple servers.
//
// # Basic Usage
//
// Create a client and store a file:
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint: "http://localhost:8000",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Put(ctx, clientcli.PutOptions{
//		LocalPath: "./report.pdf",
//		Key:       "report.pdf",
//	})
//
// # Profile Configuration
//
// Profiles map names to server endpoints:
//
//	profiles, err := clientcli.LoadProfiles(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	p, err := profiles.Resolve("production") // "" picks the default
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(&clientcli.Config{Endpoint: p.Endpoint})
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatPut(os.Stdout, results)
package clientcli
