// Package core provides the business logic for inline grid editing.
//
// This package reconciles cell edits made in a tabular view with a remote
// record store. It is independent of any UI or transport layer and can be
// driven by web handlers, tests, or an embedding host without modification.
//
// # Architecture
//
//   - Entity Definitions: Registered via the registry, each entity has column
//     metadata (type, precision, bounds, option tables) and a storage table.
//   - Normalization: [Normalize] turns a loosely typed [RawValue] into the
//     canonical [Value] for a column, or rejects it.
//   - ChangeSet: [ChangeSet] accumulates pending edits per record and column.
//   - Saving: [Saver] submits one update per pending record concurrently and
//     settles only when every update has returned.
//   - Control: [Control] is the host-facing shell that ties the above together
//     for one bound [Dataset].
//   - Service: [Service] owns the open controls of the process and records
//     their lifecycle (open, save, discard, close) in a bounded [AuditLog].
//
// # Entity Registry
//
// Entities are registered at init time using [Register]:
//
//	core.Register(core.EntityDefinition{
//	    Info: core.EntityInfo{Name: "account", Table: "accounts"},
//	    Columns: []core.ColumnMetadata{
//	        {Name: "Name", Type: core.TypeText},
//	        {Name: "Revenue", Type: core.TypeMoney, Precision: 2},
//	    },
//	})
//
// # Edit and Save Flow
//
//  1. The host reports each edit with [Control.OnCellChange]
//  2. The value is normalized against the column metadata and recorded
//  3. [Control.OnSave] drains the pending edits into concurrent record updates
//  4. On full success the edits are cleared and the dataset is refreshed once;
//     on any failure the edits stay pending and a [*SaveError] is returned
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - NRM001-NRM002: Normalization errors (rejected value, column not editable)
//   - SAV001-SAV005: Save errors (failed batch, busy, cancelled, timeout)
//   - CTL001-CTL002: Edit session errors
//   - DB001-DB008: Record store errors
package core
