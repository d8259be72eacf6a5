package config

// DefaultSpeedClasses are the speed limit labels the default sub classifier
// was trained on, in output index order.
var DefaultSpeedClasses = []string{
	"P.127-5", "P.127-10", "P.127-15", "P.127-20", "P.127-25",
	"P.127-30", "P.127-35", "P.127-40", "P.127-45", "P.127-50",
	"P.127-55", "P.127-60", "P.127-65", "P.127-70", "P.127-75",
	"P.127-80", "P.127-85", "P.127-90", "P.127-95", "P.127-100",
	"P.127-110", "P.127-120",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Detection: Detection{
			ModelName:       "best.onnx",
			LabelsFile:      "labels.txt",
			FramesPerSecond: 5,
			InputSize:       320,
			ConfThreshold:   0.5,
			TargetClasses:   []string{"P.127"},
		},
		Classifier: Classifier{
			ModelName:    "speed_classifier.onnx",
			TriggerClass: "P.127",
			MinAccept:    0.3,
			Instant:      0.9,
			InputSize:    64,
			Classes:      append([]string(nil), DefaultSpeedClasses...),
		},
		Tracking: Tracking{
			VotesNeeded:       5,
			TimeoutSeconds:    2,
			AssociationWindow: 100,
			TrailLength:       30,
		},
		Paths: Paths{
			ModelsDir:   "~/.local/share/signtrack/models",
			LogDir:      "~/.local/share/signtrack/logs",
			JournalPath: "~/.local/share/signtrack/journal.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Server: Server{
			HTTPAddr: "127.0.0.1:8080",
		},
	}
}
