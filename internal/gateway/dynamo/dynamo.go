// Package dynamo stores projects in a single DynamoDB table.
package dynamo

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
)

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// conditionalCheckFailed is the cancellation reason code of a failed
// condition inside a transaction.
const conditionalCheckFailed = "ConditionalCheckFailed"

// API is the subset of the DynamoDB client the gateway calls.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Config names the table and its owner index.
type Config struct {
	TableName  string
	OwnerIndex string
	Region     string
	Endpoint   string
}

// Gateway implements gateway.Gateway on DynamoDB.
type Gateway struct {
	client     API
	table      string
	ownerIndex string
	now        func() time.Time
	logger     *zap.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// New wraps an existing client.
func New(client API, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OwnerIndex == "" {
		cfg.OwnerIndex = "GSI1"
	}
	return &Gateway{
		client:     client,
		table:      cfg.TableName,
		ownerIndex: cfg.OwnerIndex,
		now:        time.Now,
		logger:     logger.Named("dynamo_gateway"),
	}
}

// Connect loads the default AWS configuration and builds a client. A
// non-empty Endpoint points the client at DynamoDB Local.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Gateway, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, gateway.Failure(err, "Connect", cfg.TableName)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg, logger), nil
}

// ============================================================================
// LOW-LEVEL HELPERS
// ============================================================================

func (g *Gateway) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return g.now().UTC()
	}
	return t
}

func (g *Gateway) failure(err error, op string) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		g.logger.Error("dynamodb call failed",
			zap.String("operation", op),
			zap.String("code", apiErr.ErrorCode()),
			zap.String("message", apiErr.ErrorMessage()),
		)
	}
	return gateway.Failure(err, op, g.table)
}

func conditionFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if stderrors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}

func notExists() expression.ConditionBuilder {
	return expression.AttributeNotExists(expression.Name("PK"))
}

func exists() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name("PK"))
}

func (g *Gateway) put(ctx context.Context, item any, cond *expression.ConditionBuilder) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.Internal(errors.CodeInternalError.String(), "failed to marshal item").WithCause(err).Build()
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(g.table),
		Item:      av,
	}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return errors.Internal(errors.CodeInternalError.String(), "failed to build condition").WithCause(err).Build()
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	_, err = g.client.PutItem(ctx, input)
	return err
}

func (g *Gateway) transactPut(item any, cond expression.ConditionBuilder) (*types.Put, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, errors.Internal(errors.CodeInternalError.String(), "failed to marshal item").WithCause(err).Build()
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, errors.Internal(errors.CodeInternalError.String(), "failed to build condition").WithCause(err).Build()
	}
	return &types.Put{
		TableName:                           aws.String(g.table),
		Item:                                av,
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}, nil
}

func (g *Gateway) get(ctx context.Context, pk, sk string, out any) (bool, error) {
	k, err := attributevalue.MarshalMap(key{PK: pk, SK: sk})
	if err != nil {
		return false, err
	}
	res, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(g.table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if res.Item == nil {
		return false, nil
	}
	if out != nil {
		if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (g *Gateway) deleteIfExists(ctx context.Context, pk, sk string) error {
	k, err := attributevalue.MarshalMap(key{PK: pk, SK: sk})
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().WithCondition(exists()).Build()
	if err != nil {
		return err
	}
	_, err = g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(g.table),
		Key:                       k,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// query pages through every item matching cond.
func (g *Gateway) query(ctx context.Context, cond expression.KeyConditionBuilder, index string, forward bool) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(g.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(forward),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(g.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func partitionPrefix(pk, skPrefix string) expression.KeyConditionBuilder {
	cond := expression.Key("PK").Equal(expression.Value(pk))
	if skPrefix == "" {
		return cond
	}
	return cond.And(expression.Key("SK").BeginsWith(skPrefix))
}

func decodeAll[I any, D any](items []map[string]types.AttributeValue, convert func(I) D) ([]D, error) {
	var rows []I
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, err
	}
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert(r))
	}
	return out, nil
}

// batchDelete removes keys in chunks, resubmitting unprocessed requests.
func (g *Gateway) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-i)
		for _, k := range keys[i:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		pending := map[string][]types.WriteRequest{g.table: requests}

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > 3 {
				return stderrors.New("batch delete left unprocessed items")
			}
			out, err := g.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

func keyOf(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]}
}

// ============================================================================
// PROJECTS
// ============================================================================

func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(g.table)})
	if err != nil {
		return g.failure(err, "Ping")
	}
	return nil
}

func (g *Gateway) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = shared.NewProjectID()
	}
	p.CreatedAt = g.stamp(p.CreatedAt)
	p.UpdatedAt = g.stamp(p.UpdatedAt)

	cond := notExists()
	if err := g.put(ctx, toProjectItem(p), &cond); err != nil {
		if _, ok := conditionFailed(err); ok {
			return project.Project{}, gateway.Duplicate(gateway.TableProjects, p.ID.String())
		}
		return project.Project{}, g.failure(err, "CreateProject")
	}
	return p, nil
}

func (g *Gateway) ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error) {
	cond := expression.Key("GSI1PK").Equal(expression.Value(prefixOwner + owner.String()))
	items, err := g.query(ctx, cond, g.ownerIndex, false)
	if err != nil {
		return nil, g.failure(err, "ListProjects")
	}
	out, err := decodeAll(items, projectItem.toDomain)
	if err != nil {
		return nil, g.failure(err, "ListProjects")
	}
	return out, nil
}

func (g *Gateway) GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error) {
	var it projectItem
	found, err := g.get(ctx, projectPK(id), skProject, &it)
	if err != nil {
		return project.Project{}, g.failure(err, "GetProject")
	}
	if !found {
		return project.Project{}, shared.ProjectNotFound(id)
	}
	return it.toDomain(), nil
}

func (g *Gateway) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.UpdatedAt = g.stamp(p.UpdatedAt)
	cond := exists()
	if err := g.put(ctx, toProjectItem(p), &cond); err != nil {
		if _, ok := conditionFailed(err); ok {
			return project.Project{}, shared.ProjectNotFound(p.ID)
		}
		return project.Project{}, g.failure(err, "UpdateProject")
	}
	return p, nil
}

func (g *Gateway) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	if _, err := g.GetProject(ctx, id); err != nil {
		return err
	}

	items, err := g.query(ctx, partitionPrefix(projectPK(id), ""), "", true)
	if err != nil {
		return g.failure(err, "DeleteProject")
	}
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, keyOf(item))

		var head struct {
			EntityType string `dynamodbav:"EntityType"`
			BlockID    string `dynamodbav:"BlockID"`
		}
		if err := attributevalue.UnmarshalMap(item, &head); err != nil || head.EntityType != entityBlock {
			continue
		}
		history, err := g.query(ctx, partitionPrefix(versionPK(shared.BlockID(head.BlockID)), prefixVersion), "", true)
		if err != nil {
			return g.failure(err, "DeleteProject")
		}
		for _, v := range history {
			keys = append(keys, keyOf(v))
		}
	}

	if err := g.batchDelete(ctx, keys); err != nil {
		return g.failure(err, "DeleteProject")
	}
	return nil
}

// ============================================================================
// BLOCKS
// ============================================================================

func (g *Gateway) InsertBlock(ctx context.Context, b block.Block) (block.Block, error) {
	if b.ID == "" {
		b.ID = shared.NewBlockID()
	}
	if b.Version == 0 {
		b.Version = block.InitialVersion
	}
	b.CreatedAt = g.stamp(b.CreatedAt)
	b.UpdatedAt = g.stamp(b.UpdatedAt)

	cond := notExists()
	if err := g.put(ctx, toBlockItem(b), &cond); err != nil {
		if _, ok := conditionFailed(err); ok {
			return block.Block{}, gateway.Duplicate(gateway.TableBlocks, b.ID.String())
		}
		return block.Block{}, g.failure(err, "InsertBlock")
	}
	return b, nil
}

func (g *Gateway) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	items, err := g.query(ctx, partitionPrefix(projectPK(projectID), prefixBlock), "", true)
	if err != nil {
		return nil, g.failure(err, "ListBlocks")
	}
	out, err := decodeAll(items, blockItem.toDomain)
	if err != nil {
		return nil, g.failure(err, "ListBlocks")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateBlock replaces the item. With expectedVersion > 0 the write is
// conditioned on the stored Version, as in optimistic locking.
func (g *Gateway) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	b.UpdatedAt = g.stamp(b.UpdatedAt)

	cond := exists()
	if expectedVersion > 0 {
		cond = cond.And(expression.Name("Version").Equal(expression.Value(expectedVersion)))
	}
	err := g.put(ctx, toBlockItem(b), &cond)
	if err == nil {
		return b, nil
	}

	ccf, ok := conditionFailed(err)
	if !ok {
		return block.Block{}, g.failure(err, "UpdateBlock")
	}
	if len(ccf.Item) == 0 {
		return block.Block{}, shared.BlockNotFound(b.ID)
	}
	return block.Block{}, g.versionRejected(b.ID, expectedVersion, ccf.Item, "UpdateBlock")
}

// ReviseBlock writes the block under a version condition and the prior
// version under a not-exists condition in one TransactWriteItems call.
func (g *Gateway) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	b.UpdatedAt = g.stamp(b.UpdatedAt)
	prior = g.prepareVersion(prior)

	blockPut, err := g.transactPut(toBlockItem(b),
		exists().And(expression.Name("Version").Equal(expression.Value(prior.Version))))
	if err != nil {
		return block.Block{}, err
	}
	versionPut, err := g.transactPut(toVersionItem(prior), notExists())
	if err != nil {
		return block.Block{}, err
	}

	_, err = g.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{{Put: blockPut}, {Put: versionPut}},
	})
	if err == nil {
		return b, nil
	}

	var canceled *types.TransactionCanceledException
	if !stderrors.As(err, &canceled) {
		return block.Block{}, g.failure(err, "ReviseBlock")
	}
	reasons := canceled.CancellationReasons
	switch {
	case len(reasons) > 0 && aws.ToString(reasons[0].Code) == conditionalCheckFailed:
		if len(reasons[0].Item) == 0 {
			return block.Block{}, shared.BlockNotFound(b.ID)
		}
		return block.Block{}, g.versionRejected(b.ID, prior.Version, reasons[0].Item, "ReviseBlock")
	case len(reasons) > 1 && aws.ToString(reasons[1].Code) == conditionalCheckFailed:
		return block.Block{}, gateway.Duplicate(gateway.TableVersions, versionSK(prior.Version))
	}
	return block.Block{}, g.failure(err, "ReviseBlock")
}

func (g *Gateway) versionRejected(id shared.BlockID, expected int, item map[string]types.AttributeValue, op string) error {
	var stored blockItem
	if err := attributevalue.UnmarshalMap(item, &stored); err != nil {
		return g.failure(err, op)
	}
	g.logger.Debug("block update rejected by version check",
		zap.String("block_id", id.String()),
		zap.Int("expected", expected),
		zap.Int("actual", stored.Version),
	)
	return gateway.Conflict(id, expected, stored.Version)
}

func (g *Gateway) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	if err := g.deleteIfExists(ctx, projectPK(projectID), blockSK(id)); err != nil {
		if _, ok := conditionFailed(err); ok {
			return shared.BlockNotFound(id)
		}
		return g.failure(err, "DeleteBlock")
	}
	return nil
}

// ============================================================================
// RELATIONSHIPS
// ============================================================================

func (g *Gateway) InsertRelationship(ctx context.Context, r relationship.Relationship) (relationship.Relationship, error) {
	for _, id := range []shared.BlockID{r.SourceBlockID, r.TargetBlockID} {
		found, err := g.get(ctx, projectPK(r.ProjectID), blockSK(id), nil)
		if err != nil {
			return relationship.Relationship{}, g.failure(err, "InsertRelationship")
		}
		if !found {
			return relationship.Relationship{}, shared.BlockNotFound(id)
		}
	}

	if r.ID == "" {
		r.ID = shared.NewRelationshipID()
	}
	if r.Strength == 0 {
		r.Strength = relationship.DefaultStrength
	}
	r.CreatedAt = g.stamp(r.CreatedAt)

	cond := notExists()
	if err := g.put(ctx, toRelationshipItem(r), &cond); err != nil {
		if _, ok := conditionFailed(err); ok {
			return relationship.Relationship{}, gateway.Duplicate(gateway.TableRelationships, r.ID.String())
		}
		return relationship.Relationship{}, g.failure(err, "InsertRelationship")
	}
	return r, nil
}

func (g *Gateway) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	items, err := g.query(ctx, partitionPrefix(projectPK(projectID), prefixRel), "", true)
	if err != nil {
		return nil, g.failure(err, "ListRelationships")
	}
	out, err := decodeAll(items, relationshipItem.toDomain)
	if err != nil {
		return nil, g.failure(err, "ListRelationships")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (g *Gateway) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	if err := g.deleteIfExists(ctx, projectPK(projectID), relSK(id)); err != nil {
		if _, ok := conditionFailed(err); ok {
			return shared.RelationshipNotFound(id)
		}
		return g.failure(err, "DeleteRelationship")
	}
	return nil
}

func (g *Gateway) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	rels, err := g.ListRelationships(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var ids []shared.RelationshipID
	var keys []map[string]types.AttributeValue
	for _, r := range rels {
		if !r.Touches(blockID) {
			continue
		}
		k, err := attributevalue.MarshalMap(key{PK: projectPK(projectID), SK: relSK(r.ID)})
		if err != nil {
			return nil, g.failure(err, "DeleteRelationshipsForBlock")
		}
		ids = append(ids, r.ID)
		keys = append(keys, k)
	}
	if err := g.batchDelete(ctx, keys); err != nil {
		return nil, g.failure(err, "DeleteRelationshipsForBlock")
	}
	return ids, nil
}

// ============================================================================
// VERSIONS AND ARCHIVE
// ============================================================================

func (g *Gateway) InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error) {
	v = g.prepareVersion(v)

	cond := notExists()
	if err := g.put(ctx, toVersionItem(v), &cond); err != nil {
		if _, ok := conditionFailed(err); ok {
			return block.Version{}, gateway.Duplicate(gateway.TableVersions, v.ID)
		}
		return block.Version{}, g.failure(err, "InsertBlockVersion")
	}
	return v, nil
}

func (g *Gateway) prepareVersion(v block.Version) block.Version {
	if v.ID == "" {
		v.ID = shared.NewRecordID()
	}
	if v.ChangeSummary == "" {
		v.ChangeSummary = block.DefaultChangeSummary
	}
	v.CreatedAt = g.stamp(v.CreatedAt)
	return v
}

func (g *Gateway) ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error) {
	items, err := g.query(ctx, partitionPrefix(versionPK(blockID), prefixVersion), "", false)
	if err != nil {
		return nil, g.failure(err, "ListBlockVersions")
	}
	out, err := decodeAll(items, versionItem.toDomain)
	if err != nil {
		return nil, g.failure(err, "ListBlockVersions")
	}
	return out, nil
}

func (g *Gateway) InsertInteraction(ctx context.Context, i project.Interaction) (project.Interaction, error) {
	if i.ID == "" {
		i.ID = shared.NewRecordID()
	}
	i.CreatedAt = g.stamp(i.CreatedAt)
	if err := g.put(ctx, toInteractionItem(i), nil); err != nil {
		return project.Interaction{}, g.failure(err, "InsertInteraction")
	}
	return i, nil
}

func (g *Gateway) ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error) {
	items, err := g.query(ctx, partitionPrefix(projectPK(projectID), prefixInteraction), "", false)
	if err != nil {
		return nil, g.failure(err, "ListInteractions")
	}
	out, err := decodeAll(items, interactionItem.toDomain)
	if err != nil {
		return nil, g.failure(err, "ListInteractions")
	}
	return out, nil
}

func (g *Gateway) InsertExport(ctx context.Context, e project.Export) (project.Export, error) {
	if e.ID == "" {
		e.ID = shared.NewRecordID()
	}
	if e.Audience == "" {
		e.Audience = project.DefaultAudience
	}
	e.CreatedAt = g.stamp(e.CreatedAt)
	if err := g.put(ctx, toExportItem(e), nil); err != nil {
		return project.Export{}, g.failure(err, "InsertExport")
	}
	return e, nil
}

func (g *Gateway) ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error) {
	items, err := g.query(ctx, partitionPrefix(projectPK(projectID), prefixExport), "", false)
	if err != nil {
		return nil, g.failure(err, "ListExports")
	}
	out, err := decodeAll(items, exportItem.toDomain)
	if err != nil {
		return nil, g.failure(err, "ListExports")
	}
	return out, nil
}
