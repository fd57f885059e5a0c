// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"clarity-agent/internal/common/validation"
	"clarity-agent/pkg/tools"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	nameAdd := addCmd.String("name", "", "Tool name in snake_case (e.g., start_timer)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Start Focus Timer)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., focus, journaling, planning)")
	version := addCmd.String("version", "1.0.0", "Version")
	timeout := addCmd.String("timeout", "10s", "Execution timeout (Go duration)")
	addCmd.StringVar(&registryPath, "path", "configs/tool-registry.json", "Path to registry file")

	// Update command flags
	nameUpdate := updateCmd.String("name", "", "Tool name to update")
	field := updateCmd.String("field", "", "Field to update (description, version, timeout, etc.)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/tool-registry.json", "Path to registry file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/tool-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *nameAdd == "" || *displayName == "" || *description == "" || *category == "" {
			fmt.Println("Error: name, displayName, description, and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		def := tools.Definition{
			Name:        *nameAdd,
			DisplayName: *displayName,
			Description: *description,
			Category:    *category,
			Version:     *version,
			Timeout:     *timeout,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Tags: []string{},
		}
		err := addTool(&def)
		if err != nil {
			fmt.Printf("Error adding tool: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added tool: %s\n", *nameAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *nameUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: name, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err := updateTool(*nameUpdate, *field, *value)
		if err != nil {
			fmt.Printf("Error updating tool: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated tool %s, field %s to %s\n", *nameUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err := validateRegistry()
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addTool(def *tools.Definition) error {
	if err := validation.ValidateToolNaming(def.Name); err != nil {
		return fmt.Errorf("invalid tool name %q: %w", def.Name, err)
	}

	reg, err := tools.LoadRegistryFile(registryPath)
	if err != nil {
		// If file doesn't exist, create new registry
		if os.IsNotExist(err) {
			reg = &tools.RegistryFile{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Tools:       []tools.Definition{},
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	// Check if tool already exists
	for _, existing := range reg.Tools {
		if existing.Name == def.Name {
			return fmt.Errorf("tool with name %s already exists", def.Name)
		}
	}

	// Add new tool
	reg.Tools = append(reg.Tools, *def)

	// Save registry
	return saveRegistry(reg, registryPath)
}

func updateTool(name, field, value string) error {
	reg, err := tools.LoadRegistryFile(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Tools {
		if reg.Tools[i].Name == name {
			found = true
			switch field {
			case "displayName":
				reg.Tools[i].DisplayName = value
			case "description":
				reg.Tools[i].Description = value
			case "category":
				reg.Tools[i].Category = value
			case "version":
				reg.Tools[i].Version = value
			case "timeout":
				if _, err := time.ParseDuration(value); err != nil {
					return fmt.Errorf("invalid timeout value: %w", err)
				}
				reg.Tools[i].Timeout = value
			case "idempotent":
				idempotent, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid idempotent value: %w", err)
				}
				reg.Tools[i].Idempotent = idempotent
			case "inputSchema":
				var schema map[string]interface{}
				if err := json.Unmarshal([]byte(value), &schema); err != nil {
					return fmt.Errorf("invalid inputSchema JSON: %w", err)
				}
				if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
					return fmt.Errorf("inputSchema does not compile: %w", err)
				}
				reg.Tools[i].InputSchema = schema
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("tool with name %s not found", name)
	}

	return saveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := tools.LoadRegistryFile(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Tools) == 0 {
		return fmt.Errorf("registry contains no tools")
	}

	names := make(map[string]bool)
	for _, def := range reg.Tools {
		if def.Name == "" {
			return fmt.Errorf("tool missing required field: name")
		}
		if names[def.Name] {
			return fmt.Errorf("duplicate tool name: %s", def.Name)
		}
		names[def.Name] = true

		if err := validation.ValidateToolNaming(def.Name); err != nil {
			return fmt.Errorf("tool %s: %w", def.Name, err)
		}
		if def.DisplayName == "" {
			return fmt.Errorf("tool %s missing required field: displayName", def.Name)
		}
		if def.Description == "" {
			return fmt.Errorf("tool %s missing required field: description", def.Name)
		}
		if def.InputSchema == nil {
			return fmt.Errorf("tool %s missing required field: inputSchema", def.Name)
		}

		// Every schema must compile; a schema the runtime registry cannot
		// compile would disable its tool on startup.
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema)); err != nil {
			return fmt.Errorf("tool %s: inputSchema does not compile: %w", def.Name, err)
		}
		if def.Timeout != "" {
			if _, err := time.ParseDuration(def.Timeout); err != nil {
				return fmt.Errorf("tool %s: invalid timeout %q", def.Name, def.Timeout)
			}
		}
	}

	fmt.Printf("Registry validation passed. Found %d tools.\n", len(reg.Tools))
	return nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *tools.RegistryFile, path string) error {
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new tool definition to the registry
  update   Update an existing tool's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater add -name breathing_coach -displayName "Breathing Coach" -description "Guides a short breathing exercise" -category focus
  registry-updater update -name start_timer -field timeout -value 5s
  registry-updater validate -path configs/tool-registry.json

Use 'registry-updater <command> -h' for more information about a command.

`)
}
