package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cruciblehq/pybox/internal"
)

// Represents the 'pybox version' command.
type VersionCmd struct {
	JSON bool `help:"Print build information as JSON."`
}

func (c *VersionCmd) Run(ctx context.Context) error {
	info := internal.Build()
	if !c.JSON {
		fmt.Println(info)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
