package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/store"

	cli "github.com/urfave/cli/v2"
)

var pageFlags = []cli.Flag{
	&cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Value:   50,
	},
	&cli.IntFlag{
		Name:  "offset",
		Value: 0,
	},
}

var blacklistCmd = &cli.Command{
	Name:  "blacklist",
	Usage: "sub-commands for the identifier blacklist",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:      "add",
			Usage:     "add (or update) a blacklisted identifier",
			ArgsUsage: `<identifier>`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "reason",
					Usage: "free-form note stored with the entry",
				},
			},
			Action: runBlacklistAdd,
		},
		&cli.Command{
			Name:   "ls",
			Usage:  "list blacklisted identifiers",
			Flags:  pageFlags,
			Action: runBlacklistList,
		},
		&cli.Command{
			Name:      "search",
			Usage:     "find blacklisted identifiers containing a substring",
			ArgsUsage: `<query>`,
			Flags:     pageFlags,
			Action:    runBlacklistSearch,
		},
		&cli.Command{
			Name:      "rm",
			Usage:     "remove a blacklist entry by id",
			ArgsUsage: `<id>`,
			Action:    runBlacklistRemove,
		},
	},
}

var wordsCmd = &cli.Command{
	Name:  "words",
	Usage: "sub-commands for sensitive words",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:      "add",
			Usage:     "add sensitive words (logic syntax: 'a&b' requires both, 'a~c' excludes c)",
			ArgsUsage: `<word>...`,
			Action:    runWordsAdd,
		},
		&cli.Command{
			Name:   "ls",
			Usage:  "list sensitive words",
			Flags:  pageFlags,
			Action: runWordsList,
		},
		&cli.Command{
			Name:      "rm",
			Usage:     "remove a sensitive word by id",
			ArgsUsage: `<id>`,
			Action:    runWordsRemove,
		},
	},
}

var auditCmd = &cli.Command{
	Name:  "audit",
	Usage: "sub-commands for the audit log",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:  "ls",
			Usage: "list audit log entries, newest first, as JSON lines",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:  "source",
					Usage: "only entries from this source",
				},
				&cli.StringFlag{
					Name:  "risk",
					Usage: "only entries with this risk level (pass, review, block)",
				},
				&cli.DurationFlag{
					Name:  "since",
					Usage: "only entries newer than this (eg, 24h)",
				},
			}, pageFlags...),
			Action: runAuditList,
		},
		&cli.Command{
			Name:      "rm",
			Usage:     "remove an audit log entry by id",
			ArgsUsage: `<id>`,
			Action:    runAuditRemove,
		},
	},
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "one-shot moderation of a single piece of content, printed as JSON",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Value: "cli",
		},
	}, flowFlags...),
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:      "text",
			ArgsUsage: `<text>`,
			Action:    runCheck,
		},
		&cli.Command{
			Name:      "image",
			ArgsUsage: `<url-or-base64-payload>`,
			Action:    runCheck,
		},
		&cli.Command{
			Name:      "userid",
			ArgsUsage: `<identifier>`,
			Action:    runCheck,
		},
	},
}

func firstArg(cctx *cli.Context, what string) (string, error) {
	s := cctx.Args().First()
	if s == "" {
		return "", fmt.Errorf("need to provide %s as an argument", what)
	}
	return s, nil
}

func printJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func runBlacklistAdd(cctx *cli.Context) error {
	ctx := context.Background()
	ident, err := firstArg(cctx, "an identifier")
	if err != nil {
		return err
	}
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.AddBlacklist(ctx, ident, cctx.String("reason"))
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func printBlacklist(entries []store.BlacklistEntry) {
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%s\n", e.ID, e.Identifier, e.UpdatedAt.Format(time.RFC3339), e.Reason)
	}
}

func runBlacklistList(cctx *cli.Context) error {
	ctx := context.Background()
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListBlacklist(ctx, cctx.Int("limit"), cctx.Int("offset"))
	if err != nil {
		return err
	}
	printBlacklist(entries)
	total, err := st.CountBlacklist(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d of %d entries\n", len(entries), total)
	return nil
}

func runBlacklistSearch(cctx *cli.Context) error {
	ctx := context.Background()
	q, err := firstArg(cctx, "a search query")
	if err != nil {
		return err
	}
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.SearchBlacklist(ctx, q, cctx.Int("limit"), cctx.Int("offset"))
	if err != nil {
		return err
	}
	printBlacklist(entries)
	return nil
}

func runBlacklistRemove(cctx *cli.Context) error {
	ctx := context.Background()
	id, err := firstArg(cctx, "an entry id")
	if err != nil {
		return err
	}
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.DeleteBlacklist(ctx, id)
}

func runWordsAdd(cctx *cli.Context) error {
	ctx := context.Background()
	if cctx.Args().Len() == 0 {
		return fmt.Errorf("need to provide at least one word as an argument")
	}
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, w := range cctx.Args().Slice() {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		id, err := st.AddSensitiveWord(ctx, w)
		if err != nil {
			return fmt.Errorf("adding %q: %w", w, err)
		}
		fmt.Printf("%s\t%s\n", id, w)
	}
	return nil
}

func runWordsList(cctx *cli.Context) error {
	ctx := context.Background()
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	words, err := st.ListSensitiveWords(ctx, cctx.Int("limit"), cctx.Int("offset"))
	if err != nil {
		return err
	}
	for _, w := range words {
		fmt.Printf("%s\t%s\t%s\n", w.ID, w.Word, w.UpdatedAt.Format(time.RFC3339))
	}
	total, err := st.CountSensitiveWords(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d of %d words\n", len(words), total)
	return nil
}

func runWordsRemove(cctx *cli.Context) error {
	ctx := context.Background()
	id, err := firstArg(cctx, "a word id")
	if err != nil {
		return err
	}
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.DeleteSensitiveWord(ctx, id)
}

func runAuditList(cctx *cli.Context) error {
	ctx := context.Background()
	filter := store.AuditLogFilter{
		Source: cctx.String("source"),
		Limit:  cctx.Int("limit"),
		Offset: cctx.Int("offset"),
	}
	if r := cctx.String("risk"); r != "" {
		risk, err := censor.ParseRiskLevel(r)
		if err != nil {
			return err
		}
		filter.Risk = &risk
	}
	if d := cctx.Duration("since"); d > 0 {
		filter.Start = time.Now().Add(-d).Unix()
	}

	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListAuditLogs(ctx, filter)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := printJSON(e); err != nil {
			return err
		}
	}
	return nil
}

func runAuditRemove(cctx *cli.Context) error {
	ctx := context.Background()
	id, err := firstArg(cctx, "an entry id")
	if err != nil {
		return err
	}
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.DeleteAuditLog(ctx, id)
}

// runCheck submits one piece of content through a freshly built flow. Local
// detectors are loaded from the database first.
func runCheck(cctx *cli.Context) error {
	ctx := context.Background()
	content, err := firstArg(cctx, "content")
	if err != nil {
		return err
	}
	logger := configLogger(cctx, os.Stderr)

	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	defer st.Close()

	f, sets, err := newFlow(cctx, logger)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := loadPatterns(ctx, f, st, sets); err != nil {
		logger.Warn("failed to load pattern sets", "err", err)
	}

	source := cctx.String("source")
	var res *censor.Result
	switch cctx.Command.Name {
	case "text":
		res, err = f.SubmitText(ctx, content, source, nil)
	case "image":
		res, err = f.SubmitImage(ctx, content, source)
	case "userid":
		res, err = f.SubmitUserID(ctx, content, source)
	default:
		return fmt.Errorf("unknown check: %s", cctx.Command.Name)
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}
