package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/catalog"
	"github.com/bitfantasy/nimo-mes/internal/client"
	"github.com/bitfantasy/nimo-mes/internal/lifecycle"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/report"
	"github.com/bitfantasy/nimo-mes/internal/stock"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newOrdersCmd(a *app) *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "List and drive production orders",
	}
	ordersCmd.AddCommand(
		newOrdersListCmd(a),
		newOrdersGetCmd(a),
		newOrdersTransitionCmd(a, model.ActionStart),
		newOrdersTransitionCmd(a, model.ActionComplete),
		newOrdersItemsCmd(a),
		newOrdersStatsCmd(a),
		newOrdersExportCmd(a),
		newOrdersWatchCmd(a),
	)
	return ordersCmd
}

func newOrdersListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List production orders, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := a.controller.ListOrders(cmd.Context())
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			orders, err = filterOrders(orders, status)
			if err != nil {
				return err
			}
			return printOrders(cmd.OutOrStdout(), orders)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Planned, Started or Completed")
	return cmd
}

func filterOrders(orders []model.ProductionOrder, status string) ([]model.ProductionOrder, error) {
	if status == "" {
		return orders, nil
	}
	s := model.OrderStatus(status)
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	out := make([]model.ProductionOrder, 0, len(orders))
	for _, o := range orders {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out, nil
}

func newOrdersGetCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			order, err := a.controller.Get(cmd.Context(), id)
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			var reqs []stock.Line
			if order.Status == model.StatusPlanned {
				if reqs, err = a.itemRequirements(cmd.Context(), *order); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "stock levels unavailable: %s\n", lifecycle.UserMessage(err))
				}
			}
			if output == "yaml" {
				return writeYAML(cmd.OutOrStdout(), orderView(*order, reqs))
			}
			return printOrder(cmd.OutOrStdout(), *order, reqs)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: yaml")
	return cmd
}

func newOrdersTransitionCmd(a *app, action model.Action) *cobra.Command {
	short := "Start a Planned order, deducting raw materials"
	if action == model.ActionComplete {
		short = "Complete a Started order, adding finished goods"
	}
	var force bool
	cmd := &cobra.Command{
		Use:   string(action) + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			if action == model.ActionStart && !force {
				if err := a.checkStock(cmd.Context(), id); err != nil {
					return err
				}
			}
			if action == model.ActionStart {
				err = a.controller.Start(cmd.Context(), id)
			} else {
				err = a.controller.Complete(cmd.Context(), id)
			}
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			order, err := a.controller.Get(cmd.Context(), id)
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", order.OrderNumber, order.Status)
			return nil
		},
	}
	if action == model.ActionStart {
		cmd.Flags().BoolVar(&force, "force", false, "start even when current stock looks short")
	}
	return cmd
}

// checkStock refuses to start an order whose items the last known stock
// cannot cover. The backend still makes the final decision.
func (a *app) checkStock(ctx context.Context, id int64) error {
	order, err := a.controller.Get(ctx, id)
	if err != nil {
		return errors.New(lifecycle.UserMessage(err))
	}
	if order.Status != model.StatusPlanned {
		return nil
	}
	reqs, err := a.itemRequirements(ctx, *order)
	if err != nil {
		return fmt.Errorf("cannot check stock (%s). Use --force to start anyway", lifecycle.UserMessage(err))
	}
	if stock.HasShortage(reqs) {
		return shortageError(*order, reqs)
	}
	return nil
}

func (a *app) itemRequirements(ctx context.Context, order model.ProductionOrder) ([]stock.Line, error) {
	materials, err := a.catalog.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	return stock.ForItems(order.Items, catalog.IndexByID(materials)), nil
}

func newOrdersItemsCmd(a *app) *cobra.Command {
	var items []string
	cmd := &cobra.Command{
		Use:     "items ID",
		Short:   "Edit item quantities of a Planned order",
		Example: "prodctl orders items 7 --item 70=12",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			updates, err := parseItemUpdates(items)
			if err != nil {
				return err
			}
			if err := a.controller.UpdateItems(cmd.Context(), id, updates); err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d items\n", len(updates))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "itemID=quantity, repeatable")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newOrdersStatsCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Dashboard counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := a.controller.ListOrders(cmd.Context())
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			m := lifecycle.Summarize(orders, time.Now())
			if output == "yaml" {
				return writeYAML(cmd.OutOrStdout(), m)
			}
			return printMetrics(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: yaml")
	return cmd
}

func newOrdersExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export orders to an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := a.controller.ListOrders(cmd.Context())
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			now := time.Now()
			f, err := report.OrdersWorkbook(orders, now)
			if err != nil {
				return err
			}
			defer f.Close()
			if out == "" {
				out = report.OrdersFilename(now)
			}
			if err := f.SaveAs(out); err != nil {
				return fmt.Errorf("save %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d orders to %s\n", len(orders), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "xlsx file to write")
	return cmd
}

func newOrdersWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow order and stock changes until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.client.Watch(cmd.Context(), func(ev client.Event) error {
				fmt.Fprintln(out, describeEvent(ev, time.Now()))
				return nil
			})
		},
	}
}

type orderEvent struct {
	OrderID     int64   `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	Status      string  `json:"status"`
	Action      string  `json:"action"`
	MaterialIDs []int64 `json:"materialIds"`
}

func describeEvent(ev client.Event, at time.Time) string {
	stamp := at.Format("15:04:05")
	var e orderEvent
	if json.Unmarshal([]byte(ev.Data), &e) != nil {
		return fmt.Sprintf("%s %s %s", stamp, ev.Type, ev.Data)
	}
	name := e.OrderNumber
	if name == "" {
		name = fmt.Sprintf("#%d", e.OrderID)
	}
	switch ev.Type {
	case "order_update":
		return fmt.Sprintf("%s %s %s -> %s", stamp, name, e.Action, e.Status)
	case "stock_update":
		return fmt.Sprintf("%s %s changed stock of materials %v", stamp, name, e.MaterialIDs)
	}
	return fmt.Sprintf("%s %s %s", stamp, ev.Type, ev.Data)
}

func parseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return id, nil
}

func parseItemUpdates(pairs []string) ([]model.OrderItemUpdate, error) {
	out := make([]model.OrderItemUpdate, 0, len(pairs))
	for _, p := range pairs {
		idStr, qtyStr, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("item %q: expected id=quantity", p)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid id", p)
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(qtyStr))
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid quantity", p)
		}
		out = append(out, model.OrderItemUpdate{ID: id, Quantity: qty})
	}
	return out, nil
}
