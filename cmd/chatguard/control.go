package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/chatguard/internal/api"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List or switch protection features",
	Long: `Without arguments, list every feature and whether it is on.

Examples:
  chatguard features
  chatguard features enable antispam
  chatguard features toggle chatbot`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		features, err := newClient().Features(cmd.Context())
		if err != nil {
			return err
		}
		if printJSON(features) {
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, f := range features {
			fmt.Fprintf(w, "%s\t%s\n", f.Name, onOff(f.Enabled))
		}
		return w.Flush()
	},
}

func featureActionCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <feature>",
		Short: fmt.Sprintf("%s a feature", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := newClient().SetFeature(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			if printJSON(state) {
				return nil
			}
			fmt.Printf("%s is %s\n", state.Name, onOff(state.Enabled))
			return nil
		},
	}
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "List captured view-once media",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		media, err := newClient().Vault(cmd.Context())
		if err != nil {
			return err
		}
		if printJSON(media) {
			return nil
		}
		if len(media) == 0 {
			fmt.Println("vault is empty")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSENDER\tCHAT\tAGE\tFILE")
		for _, m := range media {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.Kind, m.Sender, m.Chat,
				time.Since(m.CapturedAt).Round(time.Second), m.FilePath)
		}
		return w.Flush()
	},
}

var vaultDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Delete a captured media entry and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DiscardVaultEntry(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("discarded %s\n", args[0])
		return nil
	},
}

var trustCmd = &cobra.Command{
	Use:   "trust <sender>",
	Short: "Show a sender's trust score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := newClient().Trust(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if printJSON(score) {
			return nil
		}
		fmt.Printf("%s: score %d, blocked %v\n", score.Sender, score.Score, score.Blocked)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show audited deletions and edits",
}

var auditDeletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "List recently deleted messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		deleted, err := newClient().DeletedMessages(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if printJSON(deleted) {
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCHAT\tBY\tCONTENT")
		for _, d := range deleted {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.DeletedAt.Format(time.DateTime), d.Chat, d.DeletedBy, d.Content)
		}
		return w.Flush()
	},
}

var auditEditedCmd = &cobra.Command{
	Use:   "edited",
	Short: "List recently edited messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		edited, err := newClient().EditedMessages(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if printJSON(edited) {
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCHAT\tBY\tBEFORE\tAFTER")
		for _, e := range edited {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.EditedAt.Format(time.DateTime), e.Chat, e.EditedBy, e.OriginalContent, e.EditedContent)
		}
		return w.Flush()
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the command prefix and owner",
	Long: `Without flags, print the current settings.

Examples:
  chatguard settings
  chatguard settings --prefix "!" --owner ou_xxx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		current, err := c.Settings(cmd.Context())
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("prefix") || cmd.Flags().Changed("owner") {
			next := *current
			if cmd.Flags().Changed("prefix") {
				next.Prefix, _ = cmd.Flags().GetString("prefix")
			}
			if cmd.Flags().Changed("owner") {
				next.Owner, _ = cmd.Flags().GetString("owner")
			}
			if current, err = c.UpdateSettings(cmd.Context(), next); err != nil {
				return err
			}
		}
		if printJSON(current) {
			return nil
		}
		fmt.Printf("prefix: %q\nowner:  %s\n", current.Prefix, current.Owner)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group <chat>",
	Short: "Show or change a group's switches",
	Long: `Without flags, print the group's switches.

Examples:
  chatguard group oc_xxx
  chatguard group oc_xxx --antilink=true --antidemote=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		gs, err := c.GroupSettings(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		next := *gs
		changed := false
		for name, dst := range map[string]*bool{
			"antilink":   &next.AntiLink,
			"antidelete": &next.AntiDelete,
			"antidemote": &next.AntiDemote,
		} {
			if flags.Changed(name) {
				*dst, _ = flags.GetBool(name)
				changed = true
			}
		}
		if changed {
			if gs, err = c.SaveGroupSettings(cmd.Context(), next); err != nil {
				return err
			}
		}
		if printJSON(gs) {
			return nil
		}
		fmt.Printf("%s: antilink %s, antidelete %s, antidemote %s\n",
			gs.Chat, onOff(gs.AntiLink), onOff(gs.AntiDelete), onOff(gs.AntiDemote))
		return nil
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Inject a chat event into the engine",
	Long: `Submit an event the Feishu connection cannot deliver, such as an edit or a
view-once message.

Examples:
  chatguard event edited --id om_1 --chat oc_1 --editor ou_a --content "new text"
  chatguard event viewonce --id om_2 --chat oc_1 --sender ou_a --kind image --key img_v2_xxx`,
}

var eventEditedCmd = &cobra.Command{
	Use:   "edited",
	Short: "Inject a message edit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := api.EventRequest{Kind: string(domain.EventMessageEdited)}
		req.ID, _ = flags.GetString("id")
		req.Chat, _ = flags.GetString("chat")
		req.Editor, _ = flags.GetString("editor")
		req.NewContent, _ = flags.GetString("content")
		return injectEvent(cmd, req)
	},
}

var eventViewOnceCmd = &cobra.Command{
	Use:   "viewonce",
	Short: "Inject a view-once media message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := api.EventRequest{Kind: string(domain.EventMessageReceived)}
		req.ID, _ = flags.GetString("id")
		req.Chat, _ = flags.GetString("chat")
		req.Sender, _ = flags.GetString("sender")
		req.ChatType, _ = flags.GetString("chat-type")
		req.ViewOnce = &api.ViewOnceRequest{}
		req.ViewOnce.Kind, _ = flags.GetString("kind")
		req.ViewOnce.Key, _ = flags.GetString("key")
		req.ViewOnce.Caption, _ = flags.GetString("caption")
		req.MsgType = req.ViewOnce.Kind
		return injectEvent(cmd, req)
	},
}

func injectEvent(cmd *cobra.Command, req api.EventRequest) error {
	if err := newClient().InjectEvent(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Printf("accepted %s %s\n", req.Kind, req.ID)
	return nil
}

func init() {
	for _, action := range []string{"enable", "disable", "toggle"} {
		featuresCmd.AddCommand(featureActionCmd(action))
	}

	vaultCmd.AddCommand(vaultDiscardCmd)

	auditDeletedCmd.Flags().Int("limit", 20, "Maximum entries to show")
	auditEditedCmd.Flags().Int("limit", 20, "Maximum entries to show")
	auditCmd.AddCommand(auditDeletedCmd, auditEditedCmd)

	settingsCmd.Flags().String("prefix", "", "New command prefix")
	settingsCmd.Flags().String("owner", "", "New owner identity")

	groupCmd.Flags().Bool("antilink", false, "Remove members who post links")
	groupCmd.Flags().Bool("antidelete", false, "Announce deleted messages in the group")
	groupCmd.Flags().Bool("antidemote", false, "Leave the group when the bot is demoted")

	eventEditedCmd.Flags().String("id", "", "Message ID")
	eventEditedCmd.Flags().String("chat", "", "Chat ID")
	eventEditedCmd.Flags().String("editor", "", "Who edited the message")
	eventEditedCmd.Flags().String("content", "", "New message content")

	eventViewOnceCmd.Flags().String("id", "", "Message ID")
	eventViewOnceCmd.Flags().String("chat", "", "Chat ID")
	eventViewOnceCmd.Flags().String("chat-type", "p2p", "p2p or group")
	eventViewOnceCmd.Flags().String("sender", "", "Sender ID")
	eventViewOnceCmd.Flags().String("kind", "image", "image or video")
	eventViewOnceCmd.Flags().String("key", "", "Feishu image_key or file_key of the media")
	eventViewOnceCmd.Flags().String("caption", "", "Media caption")
	eventCmd.AddCommand(eventEditedCmd, eventViewOnceCmd)
}
