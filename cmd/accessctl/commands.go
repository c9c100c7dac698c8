package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"media-access/internal/client"
	"media-access/internal/countdown"
	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
	"media-access/internal/platform/clock"

	"github.com/spf13/cobra"
)

func newResolveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <owner-id>",
		Short: "Show your access state against an owner (fails closed to none)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			view := cl.Gate(cmd.Context(), c.userID, args[0])
			switch {
			case view.Owner:
				fmt.Println("owner: full access")
			case view.CancelRequestID != "":
				fmt.Printf("waiting: request %s (%s), cancel with `accessctl cancel %s`\n", view.CancelRequestID, view.Requested, view.CancelRequestID)
			case view.GrantID != "":
				fmt.Printf("active: grant %s scope=%s expires=%s\n", view.GrantID, view.Scope, fmtExpiry(view.ExpiresAt))
			default:
				fmt.Printf("locked: request one of %v\n", view.Options)
			}
			return nil
		},
	}
}

func newRequestCommand(c *cli) *cobra.Command {
	var duration, scope, message string
	cmd := &cobra.Command{
		Use:   "request <owner-id>",
		Short: "Request access to an owner's private media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			req, err := cl.CreateRequest(cmd.Context(), args[0], accessgrants.Duration(duration), accessgrants.Scope(scope), message)
			if err != nil {
				return err
			}
			fmt.Printf("request %s pending (%s, %s)\n", req.ID, req.Duration, req.Scope)
			return nil
		},
	}
	cmd.Flags().StringVar(&duration, "duration", "1h", "5m | 1h | always")
	cmd.Flags().StringVar(&scope, "scope", "all", "photos | videos | all")
	cmd.Flags().StringVar(&message, "message", "", "optional note for the owner")
	return cmd
}

func newDecideCommand(c *cli, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <request-id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " an access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch action {
			case "approve":
				req, g, err := cl.ApproveRequest(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("request %s %s; grant %s expires %s\n", req.ID, req.Status, g.ID, fmtExpiry(g.ExpiresAt))
			case "deny":
				req, err := cl.DenyRequest(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("request %s %s\n", req.ID, req.Status)
			default:
				req, err := cl.CancelRequest(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("request %s %s\n", req.ID, req.Status)
			}
			return nil
		},
	}
}

func newGrantCommand(c *cli) *cobra.Command {
	var duration, scope string
	cmd := &cobra.Command{
		Use:   "grant <viewer-id>",
		Short: "Grant access directly, without a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			g, err := cl.GrantAccess(cmd.Context(), args[0], accessgrants.Scope(scope), accessgrants.Duration(duration))
			if err != nil {
				return err
			}
			fmt.Printf("grant %s to %s scope=%s expires=%s\n", g.ID, g.ViewerID, g.Scope, fmtExpiry(g.ExpiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&duration, "duration", "1h", "5m | 1h | always")
	cmd.Flags().StringVar(&scope, "scope", "all", "photos | videos | all")
	return cmd
}

func newRevokeCommand(c *cli) *cobra.Command {
	var share bool
	cmd := &cobra.Command{
		Use:   "revoke <grant-id>",
		Short: "Revoke a grant (or a share with --share)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			if share {
				sh, err := cl.RevokeShare(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("share %s revoked\n", sh.ID)
				return nil
			}
			g, err := cl.RevokeGrant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("grant %s revoked\n", g.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&share, "share", false, "revoke a direct share instead of a grant")
	return cmd
}

func newGrantsCommand(c *cli) *cobra.Command {
	var received bool
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "List active grants you gave (or --received)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			var grants []accessgrants.Grant
			if received {
				grants, err = cl.ListReceivedGrants(cmd.Context())
			} else {
				grants, err = cl.ListActiveGrants(cmd.Context())
			}
			if err != nil {
				return err
			}
			printGrants(grants)
			return nil
		},
	}
	cmd.Flags().BoolVar(&received, "received", false, "grants where you are the viewer")
	return cmd
}

func newRequestsCommand(c *cli) *cobra.Command {
	var status string
	var outgoing bool
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List access requests addressed to you (or --outgoing)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			var reqs []accessgrants.Request
			if outgoing {
				reqs, err = cl.ListOutgoingRequests(cmd.Context())
			} else {
				reqs, err = cl.ListRequests(cmd.Context(), accessgrants.RequestStatus(status))
			}
			if err != nil {
				return err
			}
			printRequests(reqs)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending | approved | denied | cancelled (empty = all)")
	cmd.Flags().BoolVar(&outgoing, "outgoing", false, "requests you sent")
	return cmd
}

func newShareCommand(c *cli) *cobra.Command {
	var (
		kind, scope, duration, message string
		photos, videos                 []string
	)
	cmd := &cobra.Command{
		Use:   "share <target-id>",
		Short: "Send a direct share (max 12 photos and 3 videos)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			items := make([]client.ShareItem, 0, len(photos)+len(videos))
			for _, id := range photos {
				items = append(items, client.ShareItem{MediaID: id, Kind: "photo"})
			}
			for _, id := range videos {
				items = append(items, client.ShareItem{MediaID: id, Kind: "video"})
			}
			sh, err := cl.CreateDirectShare(cmd.Context(), client.DirectShareInput{
				TargetID: args[0],
				Kind:     shares.Kind(kind),
				Scope:    accessgrants.Scope(scope),
				Duration: accessgrants.Duration(duration),
				Items:    items,
				Message:  message,
			})
			if err != nil {
				return err
			}
			fmt.Printf("share %s sent to %s (%d items, expires %s)\n", sh.ID, sh.TargetID, len(sh.Items), fmtExpiry(sh.ExpiresAt))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", string(shares.KindPrivateAlbum), "private_album | portfolio")
	f.StringVar(&scope, "scope", "all", "photos | videos | all")
	f.StringVar(&duration, "duration", "1h", "5m | 1h | always")
	f.StringVar(&message, "message", "", "optional note")
	f.StringSliceVar(&photos, "photo", nil, "photo media id (repeatable)")
	f.StringSliceVar(&videos, "video", nil, "video media id (repeatable)")
	return cmd
}

func newSharesCommand(c *cli) *cobra.Command {
	var sent bool
	cmd := &cobra.Command{
		Use:   "shares",
		Short: "List shares you received (or --sent)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			var list []shares.Share
			if sent {
				list, err = cl.ListSentShares(cmd.Context())
			} else {
				list, err = cl.ListReceivedShares(cmd.Context())
			}
			if err != nil {
				return err
			}
			printShares(list)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sent, "sent", false, "shares you sent")
	return cmd
}

func newInboxCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "Show pending requests, active grants and received shares",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			st, err := cl.NewInbox(nil).Refresh(cmd.Context())
			if err != nil {
				return err
			}
			printInbox(st)
			return nil
		},
	}
}

func newWatchCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the inbox on screen, refreshing on every realtime event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			inbox := cl.NewInbox(func(st client.InboxState) {
				fmt.Printf("\n== %s ==\n", st.RefreshedAt.Format(time.Kitchen))
				printInbox(st)
			})
			err = inbox.Watch(cmd.Context())
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newCountdownCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "countdown <owner-id>",
		Short: "Show the time left on your grant for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			state := cl.Resolve(ctx, args[0])
			if state.Kind != accessgrants.StateActive || state.Grant == nil {
				fmt.Printf("no active grant (%s)\n", state.Kind)
				return nil
			}

			done := make(chan struct{})
			p := countdown.Start(clock.Real(), state.Grant.ExpiresAt, func(st countdown.State) {
				switch st.Phase {
				case countdown.PhasePermanent:
					fmt.Println("permanent grant")
					close(done)
				case countdown.PhaseExpired:
					fmt.Println("\rexpired            ")
					close(done)
				default:
					fmt.Printf("\r%s left   ", st.Remaining.Truncate(time.Second))
				}
			})
			defer p.Stop()

			select {
			case <-done:
			case <-ctx.Done():
				fmt.Println()
			}
			return nil
		},
	}
}

func printInbox(st client.InboxState) {
	fmt.Println("pending requests:")
	printRequests(st.Pending)
	fmt.Println("active grants:")
	printGrants(st.ActiveGrants)
	fmt.Println("received shares:")
	printShares(st.ReceivedShares)
}

func printRequests(reqs []accessgrants.Request) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tFROM\tTO\tDURATION\tSCOPE\tSTATUS\tCREATED")
	for _, r := range reqs {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.RequesterID, r.OwnerID, r.Duration, r.Scope, r.Status, r.CreatedAt.Local().Format(time.DateTime))
	}
	_ = w.Flush()
}

func printGrants(grants []accessgrants.Grant) {
	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tOWNER\tVIEWER\tSCOPE\tSTATUS\tEXPIRES")
	for _, g := range grants {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.OwnerID, g.ViewerID, g.Scope, g.Status(now), fmtExpiry(g.ExpiresAt))
	}
	_ = w.Flush()
}

func printShares(list []shares.Share) {
	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tKIND\tFROM\tTO\tITEMS\tSTATUS\tEXPIRES")
	for _, sh := range list {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\t%s\t%s\n", sh.ID, sh.Kind, sh.SenderID, sh.TargetID, len(sh.Items), sh.Status(now), fmtExpiry(sh.ExpiresAt))
	}
	_ = w.Flush()
}

func fmtExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
