package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the retention and restore spans.
const (
	AttrPartition = attribute.Key("backup.partition")

	AttrRunID              = attribute.Key("retention.run_id")
	AttrDryRun             = attribute.Key("retention.dry_run")
	AttrPartitions         = attribute.Key("retention.partitions")
	AttrPartitionsFailed   = attribute.Key("retention.partitions_failed")
	AttrBackupsDeleted     = attribute.Key("retention.backups_deleted")
	AttrPlanID             = attribute.Key("restore.plan_id")
	AttrWindow             = attribute.Key("restore.window")
	AttrPartitionCount     = attribute.Key("restore.partitions")
	AttrExporterPosition   = attribute.Key("restore.exporter_position")
	AttrSafeStart          = attribute.Key("restore.safe_start")
	AttrBackups            = attribute.Key("restore.backups")
	AttrGlobalCheckpointID = attribute.Key("restore.global_checkpoint_id")

	AttrErrorMessage = attribute.Key("error.message")
)
