package main

import (
	"fmt"
	"os"

	"github.com/mtzanidakis/agon/internal/artifact"
	"github.com/mtzanidakis/agon/internal/config"
)

func runExport(args []string) error {
	var outputPath string
	var projectID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		case "-project":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -project")
			}
			i++
			projectID = args[i]
		}
	}

	if outputPath == "" || projectID == "" {
		fmt.Fprintf(os.Stderr, "Usage: agon export -f <output.tar.zst> -project <id>\n")
		return fmt.Errorf("missing -f or -project flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	m := artifact.NewManager(cfg.Artifacts.BasePath)
	if err := m.Export(projectID, out); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("export project: %w", err)
	}

	fmt.Printf("Exported project %s to %s\n", projectID, outputPath)
	return nil
}
