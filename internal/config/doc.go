// Package config provides configuration management for the backupkern CLI.
//
// # Configuration File
//
// The default configuration file is ~/backupkern.yaml. When it does not
// exist, $XDG_CONFIG_HOME/backupkern/config.yaml is tried. The file uses
// YAML:
//
//	source: ~/
//	destination:            # a single path or a list
//	  - /mnt/backup
//	  - /media/usb/backup
//	prefix: home
//	ignore:
//	  - ~/.cache
//	  - /secrets
//	  - "*.tmp"
//	compare_mode: false
//	entry_timeout: 0s
//
// The keys from, to and exclude.locations are accepted as older spellings
// of source, destination and ignore. Every key can be overridden from the
// environment with the BACKUPKERN_ prefix, e.g. BACKUPKERN_PREFIX=work.
//
// # Loading Configuration
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    if errors.Is(err, errors.ErrInvalidConfig) {
//	        // missing, unreadable or invalid file
//	    }
//	    return err
//	}
//	res, err := engine.New().Run(ctx, cfg.EngineConfig())
//
// # Validation
//
// [Load] validates automatically. [Validate] returns every problem at once:
//
//	for _, e := range config.Validate(cfg) {
//	    fmt.Println(e)
//	}
package config
