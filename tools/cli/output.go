package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(tasks []taskStatus) {
	fmt.Printf("%-12s %-8s %-8s %s\n", "SERVICE", "RUNNING", "HEALTHY", "FAILURES")
	for _, t := range tasks {
		fmt.Printf("%-12s %-8t %-8t %d\n", t.Name, t.Running, t.Healthy, t.Failures)
	}
}
