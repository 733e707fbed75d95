/*
Copyright (c) Vijay Boopathy.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/continuity"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils"
)

var (
	beforeOffsetsPath string
	afterOffsetsPath  string
	invalidatedPolicy string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify whether a database upgrade preserved the connector's replication-offset sequence.",
	Long: `Compares the replication-offset snapshots captured before and after an upgrade and decides whether
the connector can resume from its stored offset (continuity preserved) or whether the stored offset now
points into an unrelated position sequence (continuity broken). Also prints the delivery invariants the
event stream must then be verified under.`,

	Run: func(cmd *cobra.Command, args []string) {
		classifyOffsets()
	},
}

func classifyOffsets() {
	pre, err := continuity.LoadOffsetSnapshot(beforeOffsetsPath)
	if err != nil {
		utils.ErrExit("Failed to load pre-upgrade offset snapshot: %v", err)
	}
	post, err := continuity.LoadOffsetSnapshot(afterOffsetsPath)
	if err != nil {
		utils.ErrExit("Failed to load post-upgrade offset snapshot: %v", err)
	}

	classification, err := continuity.ClassifySnapshots(pre, post)
	if err != nil {
		utils.ErrExit("Failed to classify offset snapshots: %v", err)
	}

	if classification.Preserved() {
		utils.PrintAndLog("continuity: %s (%s)", color.GreenString(classification.Mode), classification.Reason)
	} else {
		utils.PrintAndLog("continuity: %s (%s)", color.RedString(classification.Mode), classification.Reason)
	}
	for _, note := range classification.Notes {
		utils.PrintAndLog("note: %s", color.YellowString(note))
	}

	recommendedMode, err := continuity.RecommendedVerifierMode(classification, invalidatedPolicy)
	if err != nil {
		utils.ErrExit("%v", err)
	}
	utils.PrintAndLog("recommended connector snapshot.mode: %s", classification.ConnectorSnapshotMode())
	utils.PrintAndLog("verify the post-upgrade event stream with: %s",
		color.CyanString("connectors-test verify --export-dir <dir> --mode %s", recommendedMode))
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&beforeOffsetsPath, "before-offsets", "",
		"path to the offset snapshot captured before the upgrade (required)")
	classifyCmd.Flags().StringVar(&afterOffsetsPath, "after-offsets", "",
		"path to the offset snapshot captured after the upgrade (required)")
	classifyCmd.Flags().StringVar(&invalidatedPolicy, "invalidated-policy", continuity.POLICY_CHANGES_ONLY,
		fmt.Sprintf("declared recovery policy when continuity is broken: %q skips historical state, %q re-emits it",
			continuity.POLICY_CHANGES_ONLY, continuity.POLICY_RESNAPSHOT))

	classifyCmd.MarkFlagRequired("before-offsets")
	classifyCmd.MarkFlagRequired("after-offsets")
}
