package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bidit/skillsage/internal/config"
	"github.com/bidit/skillsage/internal/ingest"
	"github.com/bidit/skillsage/internal/retrieval"
	"github.com/bidit/skillsage/internal/storage"
)

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ingest datasets into the knowledge base",
	Long: `Ingest datasets into the knowledge base.

Seeding runs locally against the data directory. It does not need a running
server, but it does need the embedding backend to be reachable.

Examples:
  skillsage seed --careers careers_dataset.json --skills skills_dataset.json
  skillsage seed --faqs faq_dataset.json
  skillsage seed --pdf ./industry_report.pdf --collection faqs
  skillsage seed --url https://example.com/article --collection skills`,
	RunE: func(cmd *cobra.Command, args []string) error {
		careersFile, _ := cmd.Flags().GetString("careers")
		skillsFile, _ := cmd.Flags().GetString("skills")
		faqsFile, _ := cmd.Flags().GetString("faqs")
		pdfFile, _ := cmd.Flags().GetString("pdf")
		pageURL, _ := cmd.Flags().GetString("url")
		collection, _ := cmd.Flags().GetString("collection")

		if careersFile == "" && skillsFile == "" && faqsFile == "" && pdfFile == "" && pageURL == "" {
			return fmt.Errorf("one of --careers, --skills, --faqs, --pdf, or --url is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		embedder := retrieval.NewEmbedder(eng, cfg.Engine.EmbedModel)
		ingestor := ingest.NewIngestor(embedder, retrieval.NewSQLiteStore(store.DB()), store)

		datasets := []struct {
			path    string
			docType ingest.DocType
		}{
			{careersFile, ingest.DocCareer},
			{skillsFile, ingest.DocSkill},
			{faqsFile, ingest.DocFAQ},
		}
		for _, ds := range datasets {
			if ds.path == "" {
				continue
			}
			data, err := os.ReadFile(ds.path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", ds.path, err)
			}
			report, err := ingestor.SeedJSON(ctx, ds.docType, data)
			if err != nil {
				return fmt.Errorf("seeding %s: %w", ds.path, err)
			}
			printSuccess("%s: ingested %d, skipped %d duplicates, %d without IDs",
				ds.path, report.Ingested, report.Duplicates, report.NoID)
		}

		if pdfFile != "" {
			if err := seedPDF(ctx, ingestor, pdfFile, collection); err != nil {
				return err
			}
		}
		if pageURL != "" {
			text, err := ingest.FetchURL(ctx, &http.Client{Timeout: 30 * time.Second}, pageURL)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", pageURL, err)
			}
			id, err := ingestor.Document(ctx, collection, pageURL, text)
			if err != nil {
				return err
			}
			printSuccess("Ingested %s as %s", pageURL, id)
		}
		return nil
	},
}

func seedPDF(ctx context.Context, ingestor *ingest.Ingestor, path, collection string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	text, err := ingest.ExtractPDF(f, info.Size())
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}
	id, err := ingestor.Document(ctx, collection, path, text)
	if err != nil {
		return err
	}
	printSuccess("Ingested %s as %s", path, id)
	return nil
}

func init() {
	seedCmd.Flags().String("careers", "", "careers dataset JSON file")
	seedCmd.Flags().String("skills", "", "skills dataset JSON file")
	seedCmd.Flags().String("faqs", "", "FAQ dataset JSON file")
	seedCmd.Flags().String("pdf", "", "PDF file to extract and ingest")
	seedCmd.Flags().String("url", "", "web page to fetch and ingest")
	seedCmd.Flags().String("collection", retrieval.CollectionFAQs, "target collection for --pdf and --url")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the career advisor a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/v1/advisor/query", map[string]string{
			"email": email,
			"query": query,
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer string `json:"answer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		return nil
	},
}

// --- gaps ---

var gapsCmd = &cobra.Command{
	Use:   "gaps <email>",
	Short: "Show the skill-gap analysis for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/v1/users/" + url.PathEscape(args[0]) + "/gap-analysis")
		if err != nil {
			return err
		}

		var doc struct {
			Policy string `json:"policy"`
			Goals  []struct {
				Goal     string `json:"goal"`
				Coverage int    `json:"coverage"`
			} `json:"goals"`
			MissingSkills []struct {
				Skill        string `json:"skill"`
				Goal         string `json:"goal"`
				Priority     string `json:"priority"`
				LearningTime string `json:"learning_time"`
			} `json:"missing_skills"`
		}
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		fmt.Printf("Policy: %s\n", doc.Policy)
		for _, g := range doc.Goals {
			fmt.Printf("\n%s: %d%% covered\n", colorize(colorBold, g.Goal), g.Coverage)
			for _, m := range doc.MissingSkills {
				if m.Goal != g.Goal {
					continue
				}
				fmt.Printf("  %s (%s priority, ~%s)\n", m.Skill, m.Priority, m.LearningTime)
			}
		}
		if len(doc.MissingSkills) == 0 {
			fmt.Println("\nNo missing skills found.")
		}
		return nil
	},
}

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <email>",
	Short: "Recommend careers for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/users/%s/recommendations?k=%d", url.PathEscape(args[0]), limit)
		resp, err := client.get(path)
		if err != nil {
			return err
		}

		var result struct {
			Recommendations []struct {
				Title          string `json:"title"`
				Description    string `json:"description"`
				MatchScore     int    `json:"match_score"`
				MatchingSkills string `json:"matching_skills"`
			} `json:"recommendations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Recommendations) == 0 {
			fmt.Println("No recommendations found. Has the knowledge base been seeded?")
			return nil
		}

		for i, rec := range result.Recommendations {
			fmt.Printf("\n%s [%d%% match]\n", colorize(colorBold, fmt.Sprintf("%d. %s", i+1, rec.Title)), rec.MatchScore)
			fmt.Printf("  Matching skills: %s\n", rec.MatchingSkills)
			desc := rec.Description
			if len(desc) > 300 {
				desc = desc[:300] + "..."
			}
			if desc != "" {
				fmt.Printf("  %s\n", desc)
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().Int("limit", 0, "maximum number of recommendations (0 = server default)")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or update a user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <email>",
	Short: "Show a user profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/v1/users/" + url.PathEscape(args[0]) + "/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <email> <key> <value>",
	Short: "Set a profile field",
	Long: `Set a profile field.

The value is parsed as JSON when possible, so lists and numbers work:
  skillsage profile set ada@example.com goals '["Data Scientist"]'
  skillsage profile set ada@example.com location "Dhaka"`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, key, value := args[0], args[1], args[2]

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch("/v1/users/"+url.PathEscape(email)+"/profile", map[string]any{key: parsed})
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}
