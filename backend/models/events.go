package models

// Socket 事件名稱，payload 一律包含 conversation_id 與相關的 actor/target ID
const (
	EventGroupCreated         = "group_created"
	EventGroupUpdated         = "group_updated"
	EventGroupSettingsUpdated = "group_settings_updated"
	EventGroupDisbanded       = "group_disbanded"
	EventMembersAdded         = "members_added"
	EventMemberJoined         = "member_joined"
	EventMemberLeft           = "member_left"
	EventMemberRemoved        = "member_removed"
	EventMemberRoleUpdated    = "member_role_updated"
	EventMemberMuted          = "member_muted"
	EventMemberUnmuted        = "member_unmuted"
	EventOwnershipTransferred = "ownership_transferred"
	EventNewJoinRequest       = "new_join_request"
	EventJoinRequestApproved  = "join_request_approved"
	EventJoinRequestRejected  = "join_request_rejected"
)
