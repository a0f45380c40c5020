package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/catalog"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/report"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newMaterialsCmd(a *app) *cobra.Command {
	var (
		typ string
		low bool
	)
	cmd := &cobra.Command{
		Use:   "materials",
		Short: "List inventory materials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			materials, err := a.catalog.ListMaterials(cmd.Context())
			if err != nil {
				return err
			}
			materials, err = filterMaterials(materials, typ, low)
			if err != nil {
				return err
			}
			return printMaterials(cmd.OutOrStdout(), materials)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "raw or finished")
	cmd.Flags().BoolVar(&low, "low", false, "only materials below their minimum stock level")
	return cmd
}

func filterMaterials(materials []model.Material, typ string, low bool) ([]model.Material, error) {
	p := catalog.Partition(materials)
	switch strings.ToLower(typ) {
	case "":
	case "raw":
		materials = p.RawMaterials
	case "finished":
		materials = p.FinishedGoods
	default:
		return nil, fmt.Errorf("unknown material type %q, want raw or finished", typ)
	}
	if low {
		materials = catalog.BelowMinimum(materials)
	}
	return materials, nil
}

func newBomCmd(a *app) *cobra.Command {
	bomCmd := &cobra.Command{
		Use:   "bom",
		Short: "Manage the default recipe of a finished good",
	}

	var (
		productID  int64
		components []string
	)
	create := &cobra.Command{
		Use:     "create",
		Short:   "Replace the recipe of a product",
		Example: "prodctl bom create --product 10 --component 1=2 --component 2=4",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := parseComponents(components)
			if err != nil {
				return err
			}
			n, err := a.client.CreateBOM(cmd.Context(), model.CreateBOMCommand{ProductID: productID, Components: inputs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d components for product %d\n", n, productID)
			return nil
		},
	}
	create.Flags().Int64Var(&productID, "product", 0, "finished good id")
	create.Flags().StringArrayVar(&components, "component", nil, "materialID=quantityPerUnit, repeatable")
	_ = create.MarkFlagRequired("product")

	var encoding string
	importCmd := &cobra.Command{
		Use:     "import FILE",
		Short:   "Replace the recipe of a product from a .csv or .xlsx file",
		Example: "prodctl bom import --product 10 --encoding gbk chair.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			inputs, err := report.ReadRecipe(f, args[0], encoding)
			if err != nil {
				return err
			}
			n, err := a.client.CreateBOM(cmd.Context(), model.CreateBOMCommand{ProductID: productID, Components: inputs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d components for product %d\n", n, productID)
			return nil
		},
	}
	importCmd.Flags().Int64Var(&productID, "product", 0, "finished good id")
	importCmd.Flags().StringVar(&encoding, "encoding", "", "csv encoding: utf-8 or gbk")
	_ = importCmd.MarkFlagRequired("product")

	bomCmd.AddCommand(create, importCmd)
	return bomCmd
}

// parseComponents reads id=qty pairs.
func parseComponents(pairs []string) ([]model.BomComponentInput, error) {
	out := make([]model.BomComponentInput, 0, len(pairs))
	for _, p := range pairs {
		idStr, qtyStr, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("component %q: expected id=quantity", p)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("component %q: invalid id", p)
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(qtyStr))
		if err != nil {
			return nil, fmt.Errorf("component %q: invalid quantity", p)
		}
		out = append(out, model.BomComponentInput{ComponentID: id, Quantity: qty})
	}
	return out, nil
}
