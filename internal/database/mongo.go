package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const casAttempts = 3

type MongoRepository struct {
	client        *mongo.Client
	notifications *mongo.Collection
	rooms         *mongo.Collection
	messages      *mongo.Collection
	pods          *mongo.Collection
	collab        *mongo.Collection
}

func NewMongoRepository(ctx context.Context, uri, dbName string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	return &MongoRepository{
		client:        client,
		notifications: db.Collection("notifications"),
		rooms:         db.Collection("rooms"),
		messages:      db.Collection("messages"),
		pods:          db.Collection("pods"),
		collab:        db.Collection("collab_requests"),
	}, nil
}

// EnsureIndexes creates the indexes the conditional writes rely on.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := m.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("notifications index: %w", err)
	}

	if _, err := m.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}); err != nil {
		return fmt.Errorf("rooms index: %w", err)
	}

	if _, err := m.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("messages index: %w", err)
	}

	if _, err := m.pods.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "members.user_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("pods index: %w", err)
	}

	if _, err := m.collab.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "to_user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(types.CollabPending)}),
		},
		{Keys: bson.D{{Key: "to_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("collab index: %w", err)
	}

	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) CreateNotification(ctx context.Context, n types.Notification) error {
	meta, err := types.EncodeMeta(n.Meta)
	if err != nil {
		return err
	}

	_, err = m.notifications.InsertOne(ctx, notificationDoc{
		Id:        n.Id,
		UserId:    n.UserId,
		Type:      n.Type,
		Message:   n.Message,
		Meta:      string(meta),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (m *MongoRepository) ListNotifications(ctx context.Context, userId string, limit int) ([]types.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "read", Value: 1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))

	cur, err := m.notifications.Find(ctx, bson.M{"user_id": userId}, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}

	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	list := make([]types.Notification, 0, len(docs))
	for _, d := range docs {
		meta, err := types.DecodeMeta(d.Type, []byte(d.Meta))
		if err != nil {
			return nil, err
		}
		list = append(list, types.Notification{
			Id:        d.Id,
			UserId:    d.UserId,
			Type:      d.Type,
			Message:   d.Message,
			Meta:      meta,
			Read:      d.Read,
			CreatedAt: d.CreatedAt,
		})
	}
	return list, nil
}

func (m *MongoRepository) CountUnreadNotifications(ctx context.Context, userId string) (int, error) {
	n, err := m.notifications.CountDocuments(ctx, bson.M{"user_id": userId, "read": false})
	return int(n), err
}

func (m *MongoRepository) MarkNotificationRead(ctx context.Context, id, userId string) error {
	res, err := m.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userId},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepository) MarkAllNotificationsRead(ctx context.Context, userId string) (int, error) {
	res, err := m.notifications.UpdateMany(ctx,
		bson.M{"user_id": userId, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (m *MongoRepository) GetOrCreateDirectRoom(ctx context.Context, room types.Room) (types.Room, bool, error) {
	_, err := m.rooms.InsertOne(ctx, roomDoc{
		Id:        room.Id,
		Name:      room.Name,
		IsDirect:  room.IsDirect,
		Members:   room.Members,
		PairKey:   room.PairKey,
		CreatedAt: room.CreatedAt,
	})
	if err == nil {
		return room, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return types.Room{}, false, fmt.Errorf("insert room: %w", err)
	}

	existing, err := m.findRoom(ctx, bson.M{"pair_key": room.PairKey})
	return existing, false, err
}

func (m *MongoRepository) GetRoom(ctx context.Context, id string) (types.Room, error) {
	return m.findRoom(ctx, bson.M{"_id": id})
}

func (m *MongoRepository) findRoom(ctx context.Context, filter bson.M) (types.Room, error) {
	var d roomDoc
	if err := m.rooms.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Room{}, ErrNotFound
		}
		return types.Room{}, fmt.Errorf("find room: %w", err)
	}

	return types.Room{
		Id:        d.Id,
		Name:      d.Name,
		IsDirect:  d.IsDirect,
		Members:   d.Members,
		PairKey:   d.PairKey,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (m *MongoRepository) CreatePod(ctx context.Context, pod types.Pod) error {
	if _, err := m.pods.InsertOne(ctx, toPodDoc(pod)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert pod: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetPod(ctx context.Context, id string) (types.Pod, error) {
	d, err := m.findPod(ctx, id)
	if err != nil {
		return types.Pod{}, err
	}
	return d.toPod(), nil
}

func (m *MongoRepository) findPod(ctx context.Context, id string) (podDoc, error) {
	var d podDoc
	if err := m.pods.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return podDoc{}, ErrNotFound
		}
		return podDoc{}, fmt.Errorf("find pod: %w", err)
	}
	return d, nil
}

func (m *MongoRepository) ListPodsByOwner(ctx context.Context, ownerId string) ([]types.Pod, error) {
	return m.listPods(ctx, bson.M{"owner_id": ownerId})
}

func (m *MongoRepository) ListPodsByMember(ctx context.Context, userId string) ([]types.Pod, error) {
	return m.listPods(ctx, bson.M{"members.user_id": userId})
}

func (m *MongoRepository) listPods(ctx context.Context, filter bson.M) ([]types.Pod, error) {
	cur, err := m.pods.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find pods: %w", err)
	}

	var docs []podDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	pods := make([]types.Pod, 0, len(docs))
	for _, d := range docs {
		pods = append(pods, d.toPod())
	}
	return pods, nil
}

func (m *MongoRepository) AddApplicant(ctx context.Context, podId string, a types.Applicant, entry types.ActivityEntry) error {
	filter := bson.M{
		"_id":                podId,
		"members.user_id":    bson.M{"$ne": a.UserId},
		"applicants.user_id": bson.M{"$ne": a.UserId},
	}
	update := podUpdate(entry, bson.M{"applicants": toApplicantDoc(a)})

	res, err := m.pods.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("add applicant: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, err := m.findPod(ctx, podId); err != nil {
		return err
	}
	return ErrConflict
}

func (m *MongoRepository) RemoveApplicant(ctx context.Context, podId, applicantId string, entry types.ActivityEntry) (types.Applicant, error) {
	filter := bson.M{
		"_id":        podId,
		"applicants": bson.M{"$elemMatch": bson.M{"id": applicantId, "status": string(types.StatusPending)}},
	}
	update := podUpdate(entry, nil)
	update["$pull"] = bson.M{"applicants": bson.M{"id": applicantId}}

	var before podDoc
	err := m.pods.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Applicant{}, ErrNotFound
	}
	if err != nil {
		return types.Applicant{}, fmt.Errorf("remove applicant: %w", err)
	}

	pod := before.toPod()
	removed, _ := pod.Applicant(applicantId)
	return removed, nil
}

func (m *MongoRepository) AdmitApplicant(ctx context.Context, podId, applicantId string, member types.Member, entry types.ActivityEntry) error {
	filter := bson.M{
		"_id":        podId,
		"applicants": bson.M{"$elemMatch": bson.M{"id": applicantId, "status": string(types.StatusPending)}},
	}
	update, arrayFilters := admitUpdate(filter, member, entry)
	update["$pull"] = bson.M{"applicants": bson.M{"id": applicantId}}

	matched, err := m.updatePod(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("admit applicant: %w", err)
	}
	if matched {
		return nil
	}

	return m.diagnoseAdmit(ctx, podId, member, func(p *types.Pod) bool {
		a, ok := p.Applicant(applicantId)
		return ok && a.Status == types.StatusPending
	})
}

func (m *MongoRepository) AddInvite(ctx context.Context, podId string, inv types.Invite, entry types.ActivityEntry) error {
	filter := bson.M{
		"_id":             podId,
		"members.user_id": bson.M{"$ne": inv.UserId},
		"invites": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"user_id": inv.UserId,
			"status":  string(types.StatusPending),
		}}},
	}
	update := podUpdate(entry, bson.M{"invites": toInviteDoc(inv)})

	res, err := m.pods.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("add invite: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, err := m.findPod(ctx, podId); err != nil {
		return err
	}
	return ErrConflict
}

func (m *MongoRepository) AcceptInvite(ctx context.Context, podId, inviteId string, member types.Member, entry types.ActivityEntry) error {
	filter := bson.M{
		"_id":     podId,
		"invites": bson.M{"$elemMatch": bson.M{"id": inviteId, "status": string(types.StatusPending)}},
	}
	update, arrayFilters := admitUpdate(filter, member, entry)
	update["$set"].(bson.M)["invites.$[i].status"] = string(types.StatusAccepted)
	update["$pull"] = bson.M{"applicants": bson.M{"user_id": member.UserId, "status": string(types.StatusPending)}}
	arrayFilters = append(arrayFilters, bson.M{"i.id": inviteId})

	matched, err := m.updatePod(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	if matched {
		return nil
	}

	return m.diagnoseAdmit(ctx, podId, member, func(p *types.Pod) bool {
		i, ok := p.Invite(inviteId)
		return ok && i.Status == types.StatusPending
	})
}

func (m *MongoRepository) DeclineInvite(ctx context.Context, podId, inviteId string, entry types.ActivityEntry) error {
	filter := bson.M{
		"_id":     podId,
		"invites": bson.M{"$elemMatch": bson.M{"id": inviteId, "status": string(types.StatusPending)}},
	}
	update := podUpdate(entry, nil)
	update["$set"].(bson.M)["invites.$[i].status"] = string(types.StatusRejected)

	matched, err := m.updatePod(ctx, filter, update, []any{bson.M{"i.id": inviteId}})
	if err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveMember(ctx context.Context, podId, userId string, entry types.ActivityEntry) (types.Member, error) {
	d, err := m.findPod(ctx, podId)
	if err != nil {
		return types.Member{}, err
	}

	pod := d.toPod()
	member, ok := pod.Member(userId)
	if !ok {
		return types.Member{}, ErrNotFound
	}

	filter := bson.M{
		"_id":     podId,
		"members": bson.M{"$elemMatch": bson.M{"user_id": userId, "role_id": member.RoleId}},
	}
	update := podUpdate(entry, nil)
	pull := bson.M{"members": bson.M{"user_id": userId}}
	var arrayFilters []any
	if member.RoleId != types.DefaultRoleId {
		pull["roles.$[r].filled_by"] = userId
		update["$inc"].(bson.M)["roles.$[r].filled_count"] = -1
		update["$inc"].(bson.M)["roles.$[r].open_slots"] = 1
		arrayFilters = append(arrayFilters, bson.M{"r.id": member.RoleId})
	}
	update["$pull"] = pull

	matched, err := m.updatePod(ctx, filter, update, arrayFilters)
	if err != nil {
		return types.Member{}, fmt.Errorf("remove member: %w", err)
	}
	if !matched {
		return types.Member{}, ErrNotFound
	}
	return member, nil
}

// UpdateRoles rewrites the role list with a compare-and-swap on the pod
// version, retrying when another write lands in between.
func (m *MongoRepository) UpdateRoles(ctx context.Context, podId string, roles []types.Role, entry types.ActivityEntry) error {
	for n := 0; n < casAttempts; n++ {
		d, err := m.findPod(ctx, podId)
		if err != nil {
			return err
		}

		pod := d.toPod()
		merged, err := mergeRoles(pod.Roles, roles)
		if err != nil {
			return err
		}

		docs := make([]roleDoc, 0, len(merged))
		for _, r := range merged {
			docs = append(docs, toRoleDoc(r))
		}

		update := podUpdate(entry, nil)
		update["$set"].(bson.M)["roles"] = docs

		res, err := m.pods.UpdateOne(ctx, bson.M{"_id": podId, "version": d.Version}, update)
		if err != nil {
			return fmt.Errorf("update roles: %w", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return ErrConflict
}

func (m *MongoRepository) SetBoost(ctx context.Context, podId string, boost types.Boost, entry types.ActivityEntry) error {
	update := podUpdate(entry, nil)
	update["$set"].(bson.M)["boost"] = boostDoc{Active: boost.Active, EndsAt: boost.EndsAt}

	res, err := m.pods.UpdateOne(ctx, bson.M{"_id": podId}, update)
	if err != nil {
		return fmt.Errorf("set boost: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepository) updatePod(ctx context.Context, filter, update bson.M, arrayFilters []any) (bool, error) {
	opts := options.Update()
	if len(arrayFilters) > 0 {
		opts.SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
	}

	res, err := m.pods.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// diagnoseAdmit explains why a guarded admission matched nothing.
func (m *MongoRepository) diagnoseAdmit(ctx context.Context, podId string, member types.Member, pending func(p *types.Pod) bool) error {
	d, err := m.findPod(ctx, podId)
	if err != nil {
		return err
	}

	pod := d.toPod()
	switch {
	case !pending(&pod):
		return ErrNotFound
	case pod.IsMember(member.UserId):
		return ErrConflict
	}

	if member.RoleId == types.DefaultRoleId {
		return ErrConflict
	}
	if _, ok := pod.Role(member.RoleId); !ok {
		return ErrNotFound
	}
	return ErrRoleFull
}

// podUpdate builds the common part of every pod mutation: the activity entry,
// the timestamp and the version bump.
func podUpdate(entry types.ActivityEntry, push bson.M) bson.M {
	if push == nil {
		push = bson.M{}
	}
	push["activity"] = toActivityDoc(entry)

	return bson.M{
		"$push": push,
		"$set":  bson.M{"updated_at": entry.CreatedAt},
		"$inc":  bson.M{"version": 1},
	}
}

// admitUpdate extends filter and builds the update that adds member and, for
// a bounded role, claims one of its open slots.
func admitUpdate(filter bson.M, member types.Member, entry types.ActivityEntry) (bson.M, []any) {
	filter["members.user_id"] = bson.M{"$ne": member.UserId}

	push := bson.M{"members": toMemberDoc(member)}
	update := podUpdate(entry, push)

	var arrayFilters []any
	if member.RoleId != types.DefaultRoleId {
		filter["roles"] = bson.M{"$elemMatch": bson.M{"id": member.RoleId, "open_slots": bson.M{"$gt": 0}}}
		push["roles.$[r].filled_by"] = member.UserId
		update["$inc"].(bson.M)["roles.$[r].filled_count"] = 1
		update["$inc"].(bson.M)["roles.$[r].open_slots"] = -1
		arrayFilters = append(arrayFilters, bson.M{"r.id": member.RoleId})
	}
	return update, arrayFilters
}

func (m *MongoRepository) CreateCollabRequest(ctx context.Context, req types.CollabRequest) error {
	if _, err := m.collab.InsertOne(ctx, toCollabDoc(req)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert collab request: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetCollabRequest(ctx context.Context, id string) (types.CollabRequest, error) {
	return m.findCollab(ctx, bson.M{"_id": id}, nil)
}

func (m *MongoRepository) FindCollabRequest(ctx context.Context, fromUserId, toUserId string, status types.CollabStatus) (types.CollabRequest, error) {
	return m.findCollab(ctx,
		bson.M{"from_user_id": fromUserId, "to_user_id": toUserId, "status": string(status)},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
}

func (m *MongoRepository) findCollab(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (types.CollabRequest, error) {
	if opts == nil {
		opts = options.FindOne()
	}

	var d collabDoc
	if err := m.collab.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.CollabRequest{}, ErrNotFound
		}
		return types.CollabRequest{}, fmt.Errorf("find collab request: %w", err)
	}
	return d.toCollabRequest(), nil
}

func (m *MongoRepository) ListCollabRequests(ctx context.Context, userId string, incoming bool) ([]types.CollabRequest, error) {
	filter := bson.M{"from_user_id": userId}
	if incoming {
		filter = bson.M{"to_user_id": userId}
	}

	cur, err := m.collab.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find collab requests: %w", err)
	}

	var docs []collabDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	list := make([]types.CollabRequest, 0, len(docs))
	for _, d := range docs {
		list = append(list, d.toCollabRequest())
	}
	return list, nil
}

func (m *MongoRepository) TransitionCollabRequest(ctx context.Context, id string, status types.CollabStatus, reason, roomId string) (types.CollabRequest, error) {
	var d collabDoc
	err := m.collab.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(types.CollabPending)},
		bson.M{"$set": bson.M{
			"status":     string(status),
			"reason":     reason,
			"room_id":    roomId,
			"updated_at": types.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err == nil {
		return d.toCollabRequest(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return types.CollabRequest{}, fmt.Errorf("transition collab request: %w", err)
	}

	if _, err := m.GetCollabRequest(ctx, id); err != nil {
		return types.CollabRequest{}, err
	}
	return types.CollabRequest{}, ErrConflict
}
