package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kew222/Self-Targeting-Spacer-Search-tool/config"
	"github.com/kew222/Self-Targeting-Spacer-Search-tool/internal/stss"
)

// searchCmd runs the full self-target search.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search genomes for self-targeting spacers",
	Long: `Search gathers genomes (from NCBI or a local directory), finds their
CRISPR arrays, BLASTs every plausible spacer back against its own
genome, and reports each hit outside an array together with the
characterized Cas locus.`,
	Run: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}
	if err := stss.CheckDependencies(&cfg); err != nil {
		log.Fatal(err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	runner, err := stss.NewRunner(&cfg, workDir, viper.GetString("crt-jar"))
	if err != nil {
		log.Fatal(err)
	}
	if err := runner.Run(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	f := searchCmd.Flags()

	f.String("dir", "", "directory of FASTA genomes to analyze instead of searching NCBI")
	f.String("search", "", "NCBI search term used to find genomes")
	f.String("list", "", "file of search terms or accessions, one per line")
	f.String("groups", "", "file of grouped search terms, one group per line")
	f.Int("limit", 200000, "maximum number of genomes to download")
	f.Bool("complete-only", false, "skip fragmented (WGS) genomes")
	f.Bool("force-redownload", false, "redownload genomes even when a local copy exists")
	f.Bool("ask", true, "confirm before large downloads")

	f.String("prefix", "", "prefix for output filenames")
	f.Bool("skip-phaster", false, "skip the prophage island analysis")
	f.Float64("e-value", 1e-6, "BLAST e-value cutoff for spacer hits")
	f.Int("pad-locus", 100, "padding around arrays when excluding in-locus hits")
	f.Int("percent-reject", 25, "percent spacer-length deviation that rejects an array")

	f.Int("cas-gene-distance", 20000, "window around an array to search for cas genes, 0 for the whole genome")
	f.Bool("cdd", false, "classify unknown proteins with the NCBI conserved-domain search instead of local HMMs")
	f.String("cas-hmms", "", "path to the pressed Cas protein HMM library")
	f.String("repeat-hmms", "", "path to the pressed repeat family HMM library")

	f.Int("min-repeats", 4, "minimum repeats for the array finder to call a locus")
	f.Int("min-repeat-length", 18, "minimum repeat length")
	f.Int("max-repeat-length", 45, "maximum repeat length")
	f.Int("min-spacer-length", 18, "minimum spacer length")
	f.Int("max-spacer-length", 45, "maximum spacer length")

	f.String("crt-jar", "CRT1.2-CLI.jar", "path to the CRT jar file")

	must(viper.BindPFlag("source.dir", f.Lookup("dir")))
	must(viper.BindPFlag("source.search", f.Lookup("search")))
	must(viper.BindPFlag("source.list", f.Lookup("list")))
	must(viper.BindPFlag("source.groups", f.Lookup("groups")))
	must(viper.BindPFlag("source.limit", f.Lookup("limit")))
	must(viper.BindPFlag("source.complete-only", f.Lookup("complete-only")))
	must(viper.BindPFlag("source.force-redownload", f.Lookup("force-redownload")))
	must(viper.BindPFlag("source.ask", f.Lookup("ask")))

	must(viper.BindPFlag("prefix", f.Lookup("prefix")))
	must(viper.BindPFlag("skip-phaster", f.Lookup("skip-phaster")))
	must(viper.BindPFlag("filter.e-value", f.Lookup("e-value")))
	must(viper.BindPFlag("filter.pad-locus", f.Lookup("pad-locus")))
	must(viper.BindPFlag("filter.percent-reject", f.Lookup("percent-reject")))

	must(viper.BindPFlag("locus.cas-gene-distance", f.Lookup("cas-gene-distance")))
	must(viper.BindPFlag("locus.cdd", f.Lookup("cdd")))
	must(viper.BindPFlag("locus.cas-hmms", f.Lookup("cas-hmms")))
	must(viper.BindPFlag("locus.repeat-hmms", f.Lookup("repeat-hmms")))

	must(viper.BindPFlag("array.min-repeats", f.Lookup("min-repeats")))
	must(viper.BindPFlag("array.min-repeat-length", f.Lookup("min-repeat-length")))
	must(viper.BindPFlag("array.max-repeat-length", f.Lookup("max-repeat-length")))
	must(viper.BindPFlag("array.min-spacer-length", f.Lookup("min-spacer-length")))
	must(viper.BindPFlag("array.max-spacer-length", f.Lookup("max-spacer-length")))

	must(viper.BindPFlag("crt-jar", f.Lookup("crt-jar")))

	rootCmd.AddCommand(searchCmd)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
