package milestone

import (
	"github.com/upstream-pm/upstream/internal/entity"
	"github.com/upstream-pm/upstream/internal/host"
)

// Meta keys backing milestone fields.
const (
	MetaProjectID           = "upst_project_id"
	MetaAssignedTo          = "upst_assigned_to"
	MetaStartDate           = "upst_start_date"
	MetaEndDate             = "upst_end_date"
	MetaStartDateYMD        = "upst_start_date__YMD"
	MetaEndDateYMD          = "upst_end_date__YMD"
	MetaOrder               = "upst_order"
	MetaProgress            = "upst_progress"
	MetaColor               = "upst_color"
	MetaLegacyID            = "upst_legacy_id"
	MetaLegacyMilestoneCode = "upst_legacy_milestone_code"
	MetaCreatedTimeInUTC    = "upst_created_time_in_utc"
	MetaTaskCount           = "upst_task_count"
	MetaTaskOpen            = "upst_task_open"
	MetaReminders           = "upst_reminders"
)

// CategoryTaxonomy is the taxonomy milestone categories belong to.
const CategoryTaxonomy = "upst_milestone_category"

// ActivitySubject is the audit subject for milestone changes on a project.
const ActivitySubject = "_upstream_project_milestones"

// Field names.
const (
	fieldProjectID           = "project_id"
	fieldAssignedTo          = "assigned_to"
	fieldStartDate           = "start_date"
	fieldEndDate             = "end_date"
	fieldStartDateYMD        = "start_date_ymd"
	fieldEndDateYMD          = "end_date_ymd"
	fieldOrder               = "order"
	fieldProgress            = "progress"
	fieldColor               = "color"
	fieldLegacyID            = "legacy_id"
	fieldLegacyMilestoneCode = "legacy_milestone_code"
	fieldCreatedTimeInUTC    = "created_time_in_utc"
	fieldTaskCount           = "task_count"
	fieldTaskOpen            = "task_open"
	fieldReminders           = "reminders"
)

// Schema maps milestone fields onto record meta.
var Schema = entity.Schema{
	PostType: host.TypeMilestone,
	Fields: []entity.Field{
		{Name: fieldProjectID, Key: MetaProjectID},
		{Name: fieldAssignedTo, Key: MetaAssignedTo, Repeated: true},
		{Name: fieldStartDate, Key: MetaStartDate},
		{Name: fieldEndDate, Key: MetaEndDate},
		{Name: fieldStartDateYMD, Key: MetaStartDateYMD},
		{Name: fieldEndDateYMD, Key: MetaEndDateYMD},
		{Name: fieldOrder, Key: MetaOrder},
		{Name: fieldProgress, Key: MetaProgress},
		{Name: fieldColor, Key: MetaColor},
		{Name: fieldLegacyID, Key: MetaLegacyID},
		{Name: fieldLegacyMilestoneCode, Key: MetaLegacyMilestoneCode},
		{Name: fieldCreatedTimeInUTC, Key: MetaCreatedTimeInUTC},
		{Name: fieldTaskCount, Key: MetaTaskCount},
		{Name: fieldTaskOpen, Key: MetaTaskOpen},
		{Name: fieldReminders, Key: MetaReminders, Repeated: true},
	},
}
