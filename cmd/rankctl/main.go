// Command rankctl drives a running ranking server from the command line.
//
//	rankctl [-addr URL] check <nickname>
//	rankctl [-addr URL] register <member_no> <nickname> <score>
//	rankctl [-addr URL] top [-n N] [-member MEMBER_NO]
//	rankctl [-addr URL] seed [-count N] [-prefix P]
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"ranking-server/internal/client"
	"ranking-server/internal/constants"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()

	addr := flag.String("addr", envOr("RANKING_ADDR", "http://localhost:8000"), "ranking server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	c := client.New(*addr)
	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "check":
		err = runCheck(ctx, c, args)
	case "register":
		err = runRegister(ctx, c, args)
	case "top":
		err = runTop(ctx, c, args)
	case "seed":
		err = runSeed(ctx, c, args, logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: rankctl [-addr URL] check|register|top|seed ...\n")
	flag.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runCheck(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("check takes exactly one nickname")
	}
	res, err := c.CheckNickname(ctx, args[0])
	if err != nil {
		return err
	}
	if res.Duplicated {
		fmt.Printf("%s is taken\n", args[0])
		return nil
	}
	fmt.Printf("%s is free, member_no %d\n", args[0], res.Member.MemberNo)
	return nil
}

func runRegister(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("register takes <member_no> <nickname> <score>")
	}
	memberNo, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid member_no: %w", err)
	}
	score, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid score: %w", err)
	}
	if err := c.Register(ctx, memberNo, args[1], score); err != nil {
		return err
	}
	fmt.Printf("registered %s (%d) with %d\n", args[1], memberNo, score)
	return nil
}

func runTop(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	n := fs.Int("n", 0, "number of entries, 0 for the server default")
	member := fs.Int64("member", 0, "member number to report the rank of")
	fs.Parse(args)

	var memberNo *int64
	if *member != 0 {
		memberNo = member
	}
	res, err := c.Rankings(ctx, memberNo, *n)
	if err != nil {
		return err
	}

	for i, e := range res.TopRank {
		fmt.Printf("%3d  %-20s %d\n", i+1, e.Nickname, e.Score)
	}
	if res.MyRank != nil {
		fmt.Printf("you: #%d %s %d\n", res.MyRank.Rank, res.MyRank.Nickname, res.MyRank.Score)
	} else if memberNo != nil {
		fmt.Printf("member %d not ranked\n", *memberNo)
	}
	return nil
}

// runSeed registers fake players through the same check/register flow a game
// client uses.
func runSeed(ctx context.Context, c *client.Client, args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	count := fs.Int("count", 20, "players to register")
	prefix := fs.String("prefix", "player", "nickname prefix")
	maxScore := fs.Int64("max-score", 1000, "upper bound for random scores")
	fs.Parse(args)

	registered := 0
	for i := 0; i < *count; i++ {
		nickname := fmt.Sprintf("%s-%d", *prefix, i+1)
		check, err := c.CheckNickname(ctx, nickname)
		if err != nil {
			return err
		}
		if check.Duplicated {
			logger.Info().Str("nickname", nickname).Msg("nickname taken, skipping")
			continue
		}

		score := rand.Int64N(*maxScore + 1)
		err = c.Register(ctx, check.Member.MemberNo, nickname, score)
		if client.IsConflict(err) {
			logger.Warn().Str("nickname", nickname).Msg("lost registration race, skipping")
			continue
		}
		if err != nil {
			return err
		}
		registered++
	}

	logger.Info().Int("registered", registered).Int("requested", *count).Msg("seed completed")
	return nil
}
