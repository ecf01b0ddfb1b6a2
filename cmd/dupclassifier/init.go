package main

import (
	"fmt"
	"os"

	"github.com/lewtec/dupclassifier/classifier"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration file and check that it loads.

Example:
  dupclassifier init --config config.yaml --camera front --dir ./frames`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		camera, _ := cmd.Flags().GetString("camera")
		dir, _ := cmd.Flags().GetString("dir")
		out := cmd.OutOrStdout()

		if _, err := os.Stat(configFile); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configFile)
		} else if os.IsNotExist(err) {
			if err := createSampleConfig(configFile, camera, dir); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			fmt.Fprintf(out, "Configuration file created: %s\n", configFile)
		} else {
			return err
		}

		cfg, err := classifier.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "  1. Review and customize your config file:", configFile)
		fmt.Fprintln(out, "  2. Put frames in", cfg.Camera.Dir)
		fmt.Fprintf(out, "  3. dupclassifier serve %s\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringP("config", "c", "config.yaml", "Configuration file to create")
	initCmd.Flags().String("camera", "camera", "Name of the camera the service depends on")
	initCmd.Flags().StringP("dir", "d", "frames", "Directory of frames replayed as the camera")
}

func createSampleConfig(filename, camera, dir string) error {
	sampleConfig := fmt.Sprintf(`# dupclassifier configuration file

# The camera the service reads frames from. Requests naming another camera
# are rejected.
camera_name: %q

# Mean per sample difference, 0-255, above which a frame is reported as
# different and becomes the new reference.
threshold: %v

# Size of the initial black reference. Frames of another size are rejected
# until a frame of this size is reported as different.
width: %d
height: %d

camera:
  dir: %q

# Poll the camera on this interval; 0 disables polling.
watch:
  interval: 0s

# Record changes in a SQLite database.
storage:
  database: changes.db

# Upload changed frames to S3 compatible storage.
# upload:
#   endpoint: localhost:9000
#   access_key: ${S3_ACCESS_KEY}
#   secret_key: ${S3_SECRET_KEY}
#   bucket: frames
#   use_ssl: false

# Publish changes to NATS.
# notify:
#   url: nats://localhost:4222
#   subject: dupclassifier.changes

log:
  level: info
  format: text
  output: stdout
`, camera, classifier.DefaultThreshold, classifier.DefaultWidth, classifier.DefaultHeight, dir)

	return os.WriteFile(filename, []byte(sampleConfig), 0644)
}
